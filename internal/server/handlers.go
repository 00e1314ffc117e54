package server

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ppiankov/factcheck/internal/model"
	"github.com/ppiankov/factcheck/internal/pipeline"
	"github.com/ppiankov/factcheck/internal/util"
	"github.com/ppiankov/factcheck/internal/vision"
)

type languageOption struct {
	Code     model.Language `json:"code"`
	Name     string         `json:"name"`
	English  string         `json:"english_name"`
	Selected bool           `json:"-"`
}

type pageData struct {
	Tab          string
	Languages    []languageOption
	Language     model.Language
	Text         string
	WordCount    int
	MaxWords     int
	MaxImageMB   int64
	ImageEnabled bool

	Report      *model.Report
	Highlighted template.HTML
	Analysis    *model.ImageAnalysis
	Filename    string

	Error    string
	Warnings []string
}

func (s *Server) page(c *gin.Context, lang model.Language) pageData {
	tab := c.Query("tab")
	if tab != "image" {
		tab = "text"
	}
	data := pageData{
		Tab:          tab,
		Languages:    languageOptions(lang),
		Language:     lang,
		MaxWords:     s.checker.MaxWords(),
		ImageEnabled: s.analyzer != nil,
	}
	if s.analyzer != nil {
		data.MaxImageMB = s.analyzer.MaxBytes() >> 20
	}
	return data
}

func languageOptions(selected model.Language) []languageOption {
	opts := make([]languageOption, len(model.SupportedLanguages))
	for i, l := range model.SupportedLanguages {
		opts[i] = languageOption{Code: l, Name: l.NativeName(), English: l.EnglishName(), Selected: l == selected}
	}
	return opts
}

func (s *Server) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", s.page(c, requestLanguage(c, "")))
}

// setLanguage stores the visitor's language in a cookie. Nothing else changes:
// each later request reads the language from it.
func (s *Server) setLanguage(c *gin.Context) {
	lang, err := model.ParseLanguage(c.PostForm("language"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(LanguageCookie, string(lang), 365*24*3600, "/", "", false, true)

	target := "/"
	if c.PostForm("tab") == "image" {
		target = "/?tab=image"
	}
	c.Redirect(http.StatusSeeOther, target)
}

func (s *Server) checkForm(c *gin.Context) {
	lang := requestLanguage(c, "")
	var langErr error
	if explicit := c.PostForm("language"); explicit != "" {
		if lang, langErr = model.ParseLanguage(explicit); langErr != nil {
			lang = requestLanguage(c, "")
		}
	}
	data := s.page(c, lang)
	data.Tab = "text"
	data.Text = c.PostForm("text")
	data.WordCount = util.CountWords(data.Text)

	if langErr != nil {
		data.Error = langErr.Error()
		c.HTML(http.StatusBadRequest, "index.html", data)
		return
	}

	if strings.TrimSpace(data.Text) == "" {
		data.Warnings = []string{"Please enter some text to check."}
		c.HTML(http.StatusOK, "index.html", data)
		return
	}

	report, err := s.checker.Check(c.Request.Context(), pipeline.CheckRequest{
		Text:         data.Text,
		Language:     lang,
		CorrectTypos: c.PostForm("correct_typos") != "",
	})
	if err != nil {
		status, msg := checkError(err)
		data.Error = msg
		c.HTML(status, "index.html", data)
		return
	}

	data.Report = report
	data.Highlighted = template.HTML(report.HighlightedHTML) // sanitized by the highlighter
	data.Warnings = report.Warnings
	c.HTML(http.StatusOK, "index.html", data)
}

type checkBody struct {
	Text         string `json:"text"`
	Language     string `json:"language"`
	CorrectTypos bool   `json:"correct_typos"`
}

func (s *Server) checkJSON(c *gin.Context) {
	var body checkBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": pipeline.ErrEmptyInput.Error()})
		return
	}

	lang := requestLanguage(c, "")
	if body.Language != "" {
		parsed, err := model.ParseLanguage(body.Language)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		lang = parsed
	}

	report, err := s.checker.Check(c.Request.Context(), pipeline.CheckRequest{
		Text:         body.Text,
		Language:     lang,
		CorrectTypos: body.CorrectTypos,
	})
	if err != nil {
		status, msg := checkError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, report)
}

func checkError(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyInput):
		return http.StatusBadRequest, "Please enter some text to check."
	case errors.Is(err, pipeline.ErrWordLimit), errors.Is(err, pipeline.ErrUnsupportedLanguage):
		return http.StatusBadRequest, err.Error()
	default:
		zap.L().Error("check failed", zap.Error(err))
		return http.StatusInternalServerError, "The fact-check could not be completed. Please try again."
	}
}

func (s *Server) imageForm(c *gin.Context) {
	data := s.page(c, requestLanguage(c, ""))
	data.Tab = "image"

	analysis, filename, status, err := s.analyze(c)
	data.Filename = filename
	if err != nil {
		data.Error = err.Error()
		c.HTML(status, "index.html", data)
		return
	}
	data.Analysis = analysis
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) imageJSON(c *gin.Context) {
	analysis, _, status, err := s.analyze(c)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// analyze reads the "image" upload and runs the analyzer
func (s *Server) analyze(c *gin.Context) (*model.ImageAnalysis, string, int, error) {
	if s.analyzer == nil {
		return nil, "", http.StatusServiceUnavailable, errors.New("image analysis is not configured")
	}

	limit := s.analyzer.MaxBytes()
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", http.StatusRequestEntityTooLarge, vision.ErrImageTooLarge
		}
		return nil, "", http.StatusBadRequest, errors.New("please choose an image to upload")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fh.Filename, http.StatusBadRequest, fmt.Errorf("read upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fh.Filename, http.StatusBadRequest, fmt.Errorf("read upload: %w", err)
	}

	analysis, err := s.analyzer.Analyze(c.Request.Context(), data, fh.Filename)
	switch {
	case err == nil:
		return analysis, fh.Filename, http.StatusOK, nil
	case errors.Is(err, vision.ErrImageTooLarge):
		return nil, fh.Filename, http.StatusRequestEntityTooLarge, err
	case errors.Is(err, vision.ErrUnsupportedImage), errors.Is(err, vision.ErrEmptyImage):
		return nil, fh.Filename, http.StatusBadRequest, err
	default:
		zap.L().Error("image analysis failed", zap.String("filename", fh.Filename), zap.Error(err))
		return nil, fh.Filename, http.StatusBadGateway, errors.New("the image could not be analyzed, please try again")
	}
}

func (s *Server) languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default":   model.DefaultLanguage,
		"selected":  requestLanguage(c, c.Query("language")),
		"languages": languageOptions(""),
	})
}

package thread

import (
	"html/template"
	"strings"

	"github.com/sujalbistaa/askgo/internal/cache"
	"github.com/sujalbistaa/askgo/internal/models"
)

// SummaryContext is the input to the summary renderer.
type SummaryContext struct {
	Thread   *models.Thread
	Question *models.Post
	Title    string
}

// Renderer turns a summary context into HTML. The core treats it as an
// opaque pure function of its inputs.
type Renderer interface {
	Render(ctx SummaryContext) (string, error)
}

// TitleRenderer formats a thread title for display. Selected at
// construction time; there is no dynamic override.
type TitleRenderer interface {
	RenderTitle(t *models.Thread) string
}

// DefaultTitleRenderer appends the thread's status to the title.
type DefaultTitleRenderer struct{}

func (DefaultTitleRenderer) RenderTitle(t *models.Thread) string {
	switch {
	case t.Deleted:
		return t.Title + " [deleted]"
	case t.Closed:
		return t.Title + " [closed]"
	default:
		return t.Title
	}
}

var summaryTmpl = template.Must(template.New("summary").Parse(strings.TrimSpace(`
<div class="thread-summary" data-thread-id="{{.Thread.ID}}">
  <h2>{{.Title}}</h2>
  <p class="snippet">{{.Question.Summary}}</p>
  <ul class="tags">{{range .TagNames}}<li>{{.}}</li>{{end}}</ul>
  <span class="counts">{{.Thread.AnswerCount}} answers, {{.Thread.ViewCount}} views</span>
</div>
`)))

type templateRenderer struct{}

func (templateRenderer) Render(ctx SummaryContext) (string, error) {
	var b strings.Builder
	data := struct {
		SummaryContext
		TagNames []string
	}{ctx, TagNameList(ctx.Thread)}
	if err := summaryTmpl.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// DefaultRenderer returns the built-in template renderer.
func DefaultRenderer() Renderer { return templateRenderer{} }

// SummaryHTML returns the thread's rendered summary, from the cache when
// possible. With groups enabled caching is off, because group membership
// is not part of the key.
func (s *Service) SummaryHTML(t *models.Thread) (string, error) {
	if s.settings.GroupsEnabled {
		return s.renderSummary(t)
	}
	key := cache.SummaryKey{ThreadID: t.ID, Lang: t.LanguageCode}.String()
	if v, ok := s.cache.Get(key); ok {
		if html, ok := v.(string); ok {
			return html, nil
		}
	}
	return s.UpdateSummaryHTML(t)
}

// UpdateSummaryHTML recomputes the summary and stores it with the fixed
// 30-day expiry ceiling.
func (s *Service) UpdateSummaryHTML(t *models.Thread) (string, error) {
	html, err := s.renderSummary(t)
	if err != nil {
		return "", err
	}
	if !s.settings.GroupsEnabled {
		key := cache.SummaryKey{ThreadID: t.ID, Lang: t.LanguageCode}.String()
		s.cache.Set(key, html, cache.LongTime)
	}
	return html, nil
}

func (s *Service) renderSummary(t *models.Thread) (string, error) {
	// fetch the question fresh to make sure the snippet is current
	question, err := s.QuestionPost(t.ID)
	if err != nil {
		return "", err
	}
	return s.renderer.Render(SummaryContext{
		Thread:   t,
		Question: question,
		Title:    s.titles.RenderTitle(t),
	})
}

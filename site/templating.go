package site

import (
	"html/template"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	g "github.com/maragudk/gomponents"

	"quill/config"
	"quill/database"
	templates "quill/templates_fancy"
)

var templatesCache sync.Map

// relative to the working directory; tests point this at the repo root
var templatesDir = "templates/"

type GlobalTemplateData struct {
	CurrentUser *database.User
	IsDebug     bool
	SiteName    string
	PublicURL   string
}

func layoutProps(gd GlobalTemplateData) templates.LayoutProps {
	username := ""
	if gd.CurrentUser != nil {
		username = gd.CurrentUser.Username
	}
	return templates.LayoutProps{SiteName: gd.SiteName, CurrentUser: username}
}

func renderComponent(node g.Node) template.HTML {
	var b strings.Builder
	if err := node.Render(&b); err != nil {
		log.Printf("Component render error: %v", err)
		return ""
	}
	return template.HTML(b.String())
}

func RenderTemplate(w http.ResponseWriter, r *http.Request, templateName string, data any) {
	conf := config.Get()

	templateData := struct {
		Global GlobalTemplateData
		Data   any
	}{
		Global: GlobalTemplateData{
			CurrentUser: getSignedInUserOrNil(r),
			IsDebug:     conf.Debug,
			SiteName:    conf.SiteName,
			PublicURL:   conf.PublicURL,
		},
		Data: data,
	}

	actualTemplate, ok := templatesCache.Load(templateName)
	if !ok || conf.Debug {

		baseTemplate := template.New("layout.html").Funcs(template.FuncMap{
			"parseMarkdown": func(markdownStr string) template.HTML {
				extensions := parser.CommonExtensions | parser.AutoHeadingIDs
				p := parser.NewWithExtensions(extensions)
				doc := p.Parse([]byte(markdownStr))

				// create HTML renderer with extensions
				htmlFlags := html.CommonFlags | html.HrefTargetBlank
				opts := html.RendererOptions{Flags: htmlFlags}
				renderer := html.NewRenderer(opts)

				rendered := markdown.Render(doc, renderer)

				return template.HTML(rendered)
			},
			"dateFmt": func(layout string, t time.Time) string {
				return t.Format(layout)
			},
			"now": func() time.Time {
				return time.Now()
			},
			"navbar": func(gd GlobalTemplateData) template.HTML {
				return renderComponent(templates.NavbarComponent(layoutProps(gd)))
			},
			"footer": func(gd GlobalTemplateData) template.HTML {
				return renderComponent(templates.FooterComponent(layoutProps(gd)))
			},
			"paginator": func(p templates.PaginationProps) template.HTML {
				return renderComponent(templates.PaginationComponent(p))
			},
		})

		baseTemplate = template.Must(baseTemplate.ParseFiles(filepath.Join(templatesDir, "layout.html")))
		actualTemplate = template.Must(baseTemplate.ParseFiles(filepath.Join(templatesDir, templateName+".html")))

		templatesCache.Store(templateName, actualTemplate)
	}

	err := actualTemplate.(*template.Template).Execute(w, templateData)

	if err != nil {
		log.Printf("Template execution error: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

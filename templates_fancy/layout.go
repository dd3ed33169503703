package templates

import (
	"fmt"

	g "github.com/maragudk/gomponents"
	. "github.com/maragudk/gomponents/html"
)

type LayoutProps struct {
	SiteName    string
	CurrentUser string
}

func NavbarComponent(props LayoutProps) g.Node {
	return Nav(Class("nav"),
		Div(Class("nav-left"),
			Div(Class("brand"), A(Href("/"), g.Text(props.SiteName))),
		),
		Div(Class("nav-links nav-right"),
			g.If(props.CurrentUser == "",
				Div(
					A(Href("/signin"), g.Text("Sign in")),
					A(Href("/signup"), g.Text("Sign up")),
				),
			),
			g.If(props.CurrentUser != "",
				Div(Class("row"),
					Div(Class("col"), A(Href("/profile/"+props.CurrentUser), g.Textf("@%s", props.CurrentUser))),
					Div(Class("col"), A(Href("/posts/create"), g.Text("New post"))),
					Div(Class("col"),
						FormEl(Method("post"), Action("/logout"), Class("inline-form"),
							Button(Type("submit"), Class("link-button"), g.Text("Log out")),
						),
					),
				)),
		),
	)
}

func FooterComponent(props LayoutProps) g.Node {
	return Footer(Class("footer"),
		P(Class("small"),
			g.Textf("%s — a quiet place for writing.", props.SiteName),
		),
	)
}

type PaginationProps struct {
	// BaseURL is the listing path without a page parameter, e.g. "/"
	// or "/category/travel".
	BaseURL    string
	Number     int
	TotalPages int
}

func (p PaginationProps) pageHref(n int) string {
	return fmt.Sprintf("%s?page=%d", p.BaseURL, n)
}

// PaginationComponent renders prev/next links plus a page counter.
// Listings with a single page get no widget at all.
func PaginationComponent(p PaginationProps) g.Node {
	if p.TotalPages <= 1 {
		return g.Text("")
	}

	return Div(Class("pagination"),
		g.If(p.Number > 1,
			A(Class("page-prev"), Href(p.pageHref(p.Number-1)), g.Text("← newer")),
		),
		Span(Class("page-counter"), g.Textf("page %d of %d", p.Number, p.TotalPages)),
		g.If(p.Number < p.TotalPages,
			A(Class("page-next"), Href(p.pageHref(p.Number+1)), g.Text("older →")),
		),
	)
}

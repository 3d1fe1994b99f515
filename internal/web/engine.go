// Package web serves the HTML pages of the portal: the landing page, the
// sign-in and sign-up forms and the profile settings view.
package web

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var templates embed.FS

const layout = "layouts/main"

// NewEngine returns the view engine for fiber.Config.Views.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}
	return html.NewFileSystem(http.FS(sub), ".html")
}

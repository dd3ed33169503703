package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"quill/config"
	"quill/database"
	"quill/site"
)

func main() {
	conf := config.Get()
	_ = database.GetDB() // force database initialization
	r := initRouter(conf)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Running on http://localhost%s", conf.ListenAddr)
		if err := http.ListenAndServe(conf.ListenAddr, r); err != nil {
			log.Printf("HTTP server stopped: %v", err)
		}
	}()

	// Block until a signal is received
	<-signals
	log.Println("Shutting down gracefully...")

	// Close the database connection
	database.CloseDB()
}

func initRouter(conf config.Config) *chi.Mux {

	r := chi.NewRouter()

	CORSMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	})

	r.Use(CORSMiddleware.Handler)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(httprate.LimitByIP(100, time.Minute)) // general rate limiter for all routes (shared across all routes)
	r.Use(middleware.Recoverer)
	r.Use(site.TryPutUserInContextMiddleware)

	r.Get("/", site.Index)

	r.HandleFunc("/signin", site.UserSignIn)
	r.HandleFunc("/signup", site.UserSignUp)
	r.Post("/logout", site.UserLogout)

	r.Get("/posts/{postID}", site.PostDetail)
	r.Get("/category/{categorySlug}", site.CategoryPosts)
	r.Get("/profile/{username}", site.Profile)

	r.With(site.AuthProtectedMiddleware).Group(func(r chi.Router) {
		r.HandleFunc("/posts/create", site.CreatePost)
		r.HandleFunc("/posts/{postID}/edit", site.EditPost)
		r.Post("/posts/{postID}/delete", site.DeletePost)

		r.Post("/posts/{postID}/comment", site.CreateComment)
		r.HandleFunc("/posts/{postID}/comment/{commentID}/edit", site.EditComment)
		r.Post("/posts/{postID}/comment/{commentID}/delete", site.DeleteComment)

		r.HandleFunc("/profile/edit", site.EditProfile)
	})

	r.With(site.AuthProtectedMiddleware, site.StaffOnlyMiddleware).Route("/admin", func(r chi.Router) {
		r.Get("/categories", site.AdminCategoryList)
		r.HandleFunc("/categories/new", site.AdminCreateCategory)
		r.HandleFunc("/categories/{categoryID}", site.AdminEditCategory)
		r.Post("/categories/{categoryID}/delete", site.AdminDeleteCategory)

		r.Get("/locations", site.AdminLocationList)
		r.HandleFunc("/locations/new", site.AdminCreateLocation)
		r.HandleFunc("/locations/{locationID}", site.AdminEditLocation)
		r.Post("/locations/{locationID}/delete", site.AdminDeleteLocation)
	})

	fileServer := http.FileServer(http.Dir("./assets"))
	r.Handle("/assets/*", http.StripPrefix("/assets", fileServer))

	uploadsServer := http.FileServer(http.Dir(conf.UploadsDir))
	r.Handle("/uploads/*", http.StripPrefix("/uploads", uploadsServer))

	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Get("/users/{username}/posts", func(w http.ResponseWriter, r *http.Request) {
				username := chi.URLParam(r, "username")

				user, err := database.GetUserByUsername(database.GetDB(), username)
				if err != nil {
					http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
					return
				}

				// the feed is public, so the anonymous filter applies
				// even to the author's own requests
				page, err := database.FindPosts(database.GetDB(), database.PostQuery{
					AuthorID: user.ID,
				})
				if err != nil {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(page.Posts)
			})
		})
	})

	return r
}

package site

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"quill/config"
	"quill/constants"
	"quill/database"
	templates "quill/templates_fancy"
)

// timeNow is swapped in tests to pin the publication cutoff.
var timeNow = time.Now

type listingData struct {
	Page      *database.PostPage
	Paginator templates.PaginationProps
	Category  *database.Category
	Profile   *database.User
	IsOwner   bool
}

type detailData struct {
	Post *database.Post
	Form *CommentForm
}

type postFormData struct {
	Form *PostForm
	Post *database.Post // nil on the create page
}

func parsePage(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func parseIDParam(r *http.Request, name string) (uint, bool) {
	parsed, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(parsed), true
}

func viewerID(r *http.Request) uint {
	if user := getSignedInUserOrNil(r); user != nil {
		return user.ID
	}
	return 0
}

func paginatorFor(page *database.PostPage, baseURL string) templates.PaginationProps {
	return templates.PaginationProps{
		BaseURL:    baseURL,
		Number:     page.Number,
		TotalPages: page.TotalPages,
	}
}

// Index is the home page: every post currently visible to the public,
// newest first.
func Index(w http.ResponseWriter, r *http.Request) {
	page, err := database.FindPosts(database.GetDB(), database.PostQuery{
		Page: parsePage(r),
		Now:  timeNow(),
	})
	if err != nil {
		http.Error(w, "Error fetching posts", http.StatusInternalServerError)
		return
	}

	RenderTemplate(w, r, "home", listingData{
		Page:      page,
		Paginator: paginatorFor(page, "/"),
	})
}

// CategoryPosts lists the visible posts of one published category. An
// unpublished category 404s just like a missing one.
func CategoryPosts(w http.ResponseWriter, r *http.Request) {
	categorySlug := chi.URLParam(r, "categorySlug")

	category, err := database.GetPublishedCategory(database.GetDB(), categorySlug)
	if err != nil {
		if database.IsNotFound(err) {
			http.Error(w, "Category not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error fetching category", http.StatusInternalServerError)
		}
		return
	}

	page, err := database.FindPosts(database.GetDB(), database.PostQuery{
		CategorySlug: categorySlug,
		Page:         parsePage(r),
		Now:          timeNow(),
	})
	if err != nil {
		http.Error(w, "Error fetching posts", http.StatusInternalServerError)
		return
	}

	RenderTemplate(w, r, "category", listingData{
		Page:      page,
		Paginator: paginatorFor(page, "/category/"+categorySlug),
		Category:  category,
	})
}

// Profile lists a user's posts. The profile owner sees all of them,
// scheduled and unpublished included; everyone else goes through the
// visibility filter.
func Profile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	profile, err := database.GetUserByUsername(database.GetDB(), username)
	if err != nil {
		if database.IsNotFound(err) {
			http.Error(w, "User not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error fetching user", http.StatusInternalServerError)
		}
		return
	}

	page, err := database.FindPosts(database.GetDB(), database.PostQuery{
		AuthorID: profile.ID,
		ViewerID: viewerID(r),
		Page:     parsePage(r),
		Now:      timeNow(),
	})
	if err != nil {
		http.Error(w, "Error fetching posts", http.StatusInternalServerError)
		return
	}

	RenderTemplate(w, r, "profile", listingData{
		Page:      page,
		Paginator: paginatorFor(page, "/profile/"+username),
		Profile:   profile,
		IsOwner:   profile.ID == viewerID(r),
	})
}

// PostDetail shows one post with its full comment thread. A post the
// requester may not see is indistinguishable from a missing one.
func PostDetail(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseIDParam(r, "postID")
	if !ok {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	post, err := database.PostForViewer(database.GetDB(), postID, viewerID(r), timeNow())
	if err != nil {
		if database.IsNotFound(err) {
			http.Error(w, "Post not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error fetching post", http.StatusInternalServerError)
		}
		return
	}

	RenderTemplate(w, r, "detail", detailData{
		Post: post,
		Form: &CommentForm{Errors: map[string]string{}},
	})
}

func CreatePost(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		form := &PostForm{IsPublished: true, Errors: map[string]string{}}
		if err := form.loadChoices(); err != nil {
			http.Error(w, "Error loading form", http.StatusInternalServerError)
			return
		}
		RenderTemplate(w, r, "create_edit_post", postFormData{Form: form})

	case "POST":
		user := getSignedInUserOrFail(r)

		if err := r.ParseMultipartForm(constants.MAX_UPLOAD_BYTES); err != nil {
			// plain form submissions without an image are fine too
			if err := r.ParseForm(); err != nil {
				http.Error(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
				return
			}
		}

		form := PostFormFromRequest(r)
		if err := form.loadChoices(); err != nil {
			http.Error(w, "Error loading form", http.StatusInternalServerError)
			return
		}
		if !form.Valid() {
			RenderTemplate(w, r, "create_edit_post", postFormData{Form: form})
			return
		}

		// the author always comes from the session, never the client
		newPost := database.Post{AuthorID: user.ID}
		form.Apply(&newPost)

		image, err := saveUploadedImage(r)
		if err != nil {
			http.Error(w, "Failed to store image: "+err.Error(), http.StatusBadRequest)
			return
		}
		newPost.Image = image

		result := database.GetDB().Create(&newPost)
		if result.Error != nil {
			http.Error(w, "Error creating post", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/profile/"+user.Username, http.StatusSeeOther)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func EditPost(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseIDParam(r, "postID")
	if !ok {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	var post database.Post
	result := database.GetDB().First(&post, postID)
	if result.Error != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	if !ownsOrRedirect(w, r, post.AuthorID, post.ID) {
		return
	}

	switch r.Method {
	case "GET":
		form := PostFormFromPost(&post)
		if err := form.loadChoices(); err != nil {
			http.Error(w, "Error loading form", http.StatusInternalServerError)
			return
		}
		RenderTemplate(w, r, "create_edit_post", postFormData{Form: form, Post: &post})

	case "POST":
		if err := r.ParseMultipartForm(constants.MAX_UPLOAD_BYTES); err != nil {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "Failed to parse form: "+err.Error(), http.StatusBadRequest)
				return
			}
		}

		form := PostFormFromRequest(r)
		if err := form.loadChoices(); err != nil {
			http.Error(w, "Error loading form", http.StatusInternalServerError)
			return
		}
		if !form.Valid() {
			RenderTemplate(w, r, "create_edit_post", postFormData{Form: form, Post: &post})
			return
		}

		form.Apply(&post)

		image, err := saveUploadedImage(r)
		if err != nil {
			http.Error(w, "Failed to store image: "+err.Error(), http.StatusBadRequest)
			return
		}
		if image != "" {
			post.Image = image
		}

		result = database.GetDB().Save(&post)
		if result.Error != nil {
			http.Error(w, "Error updating post", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/posts/"+strconv.Itoa(int(post.ID)), http.StatusSeeOther)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func DeletePost(w http.ResponseWriter, r *http.Request) {
	postID, ok := parseIDParam(r, "postID")
	if !ok {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	var post database.Post
	result := database.GetDB().First(&post, postID)
	if result.Error != nil {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	if !ownsOrRedirect(w, r, post.AuthorID, post.ID) {
		return
	}

	switch r.Method {
	case "POST":
		if err := database.DeletePost(database.GetDB(), &post); err != nil {
			http.Error(w, "Error deleting post", http.StatusInternalServerError)
			return
		}

		user := getSignedInUserOrFail(r)
		http.Redirect(w, r, "/profile/"+user.Username, http.StatusSeeOther)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// EditProfile lets the signed-in user change their own display fields.
func EditProfile(w http.ResponseWriter, r *http.Request) {
	user := getSignedInUserOrFail(r)

	switch r.Method {
	case "GET":
		RenderTemplate(w, r, "profile_edit", ProfileFormFromUser(user))

	case "POST":
		form := ProfileFormFromRequest(r)
		if form.Valid() && form.Username != user.Username {
			var taken database.User
			result := database.GetDB().Where(&database.User{Username: form.Username}).First(&taken)
			if result.Error == nil && taken.ID != user.ID {
				form.Errors["username"] = "That username is already taken"
			}
		}
		if len(form.Errors) > 0 {
			RenderTemplate(w, r, "profile_edit", form)
			return
		}

		user.FirstName = form.FirstName
		user.LastName = form.LastName
		user.Username = form.Username
		user.Email = form.Email

		result := database.GetDB().Save(user)
		if result.Error != nil {
			http.Error(w, "Error updating profile", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/profile/"+user.Username, http.StatusSeeOther)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// ownsOrRedirect is the ownership guard for mutations: anyone who is
// not the author is sent to the post's public page instead of being
// shown a permission error.
func ownsOrRedirect(w http.ResponseWriter, r *http.Request, authorID uint, postID uint) bool {
	user := getSignedInUserOrFail(r)
	if user.ID == authorID {
		return true
	}

	http.Redirect(w, r, "/posts/"+strconv.Itoa(int(postID)), http.StatusSeeOther)
	return false
}

// saveUploadedImage stores an optional "image" form file under the
// uploads dir and returns its public URL path, or "" when the request
// carried no image.
func saveUploadedImage(r *http.Request) (string, error) {
	if r.MultipartForm == nil {
		return "", nil
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	defer file.Close()

	nameBytes := make([]byte, 8)
	if _, err := rand.Read(nameBytes); err != nil {
		return "", err
	}
	name := hex.EncodeToString(nameBytes) + filepath.Ext(header.Filename)

	conf := config.Get()
	if err := os.MkdirAll(conf.UploadsDir, 0o755); err != nil {
		return "", err
	}

	dst, err := os.Create(filepath.Join(conf.UploadsDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}

	return "/uploads/" + name, nil
}

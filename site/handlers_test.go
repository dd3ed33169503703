package site

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"quill/database"
)

var testDBCounter atomic.Int64

func setupSiteTest(t *testing.T) *gorm.DB {
	t.Helper()

	templatesDir = "../templates/"

	dsn := fmt.Sprintf("file:sitetest%d?mode=memory&cache=shared", testDBCounter.Add(1))
	gdb, err := database.Open(dsn, false)
	require.NoError(t, err)
	database.SetDB(gdb)

	t.Cleanup(func() {
		sqlDB, err := gdb.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return gdb
}

// newTestRouter mirrors the app's wiring for the routes under test.
func newTestRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TryPutUserInContextMiddleware)

	r.Get("/", Index)
	r.Get("/posts/{postID}", PostDetail)
	r.Get("/profile/{username}", Profile)

	r.With(AuthProtectedMiddleware).Group(func(r chi.Router) {
		r.HandleFunc("/posts/create", CreatePost)
		r.HandleFunc("/posts/{postID}/edit", EditPost)
		r.Post("/posts/{postID}/delete", DeletePost)
		r.Post("/posts/{postID}/comment", CreateComment)
		r.HandleFunc("/posts/{postID}/comment/{commentID}/edit", EditComment)
		r.Post("/posts/{postID}/comment/{commentID}/delete", DeleteComment)
		r.HandleFunc("/profile/edit", EditProfile)
	})

	return r
}

func seedUser(t *testing.T, gdb *gorm.DB, username string) *database.User {
	t.Helper()
	user := &database.User{Username: username, SessionToken: "token-" + username}
	require.NoError(t, gdb.Create(user).Error)
	return user
}

func seedPost(t *testing.T, gdb *gorm.DB, author *database.User, mutate func(*database.Post)) *database.Post {
	t.Helper()
	post := &database.Post{
		Title:       "a post",
		Text:        "some text",
		PubDate:     time.Now().Add(-time.Hour),
		IsPublished: true,
		AuthorID:    author.ID,
	}
	if mutate != nil {
		mutate(post)
	}
	require.NoError(t, gdb.Create(post).Error)
	return post
}

func getAs(router http.Handler, user *database.User, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if user != nil {
		req.AddCookie(&http.Cookie{
			Name:  string(AuthenticatedUserTokenCookieName),
			Value: user.SessionToken,
		})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func postFormAs(router http.Handler, user *database.User, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if user != nil {
		req.AddCookie(&http.Cookie{
			Name:  string(AuthenticatedUserTokenCookieName),
			Value: user.SessionToken,
		})
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPostDetailHiddenPostIsNotFoundForOthers(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	author := seedUser(t, gdb, "alice")
	stranger := seedUser(t, gdb, "bob")
	post := seedPost(t, gdb, author, func(p *database.Post) {
		p.Title = "tomorrow's post"
		p.PubDate = time.Now().Add(24 * time.Hour)
	})
	detail := fmt.Sprintf("/posts/%d", post.ID)

	// anonymous and non-author requesters get a 404, not a permission error
	assert.Equal(t, http.StatusNotFound, getAs(router, nil, detail).Code)
	assert.Equal(t, http.StatusNotFound, getAs(router, stranger, detail).Code)

	rec := getAs(router, author, detail)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tomorrow&#39;s post")
}

func TestPostDetailVisiblePostIsPublic(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	author := seedUser(t, gdb, "alice")
	post := seedPost(t, gdb, author, func(p *database.Post) {
		p.Title = "hello world"
	})

	rec := getAs(router, nil, fmt.Sprintf("/posts/%d", post.ID))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello world")
}

func TestCreatePostRequiresAuthentication(t *testing.T) {
	setupSiteTest(t)
	router := newTestRouter()

	rec := postFormAs(router, nil, "/posts/create", url.Values{
		"title": {"drive-by"},
		"text":  {"should never land"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/signin", rec.Header().Get("Location"))

	var count int64
	require.NoError(t, database.GetDB().Model(&database.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestCreatePostSetsAuthorFromSession(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	user := seedUser(t, gdb, "alice")
	other := seedUser(t, gdb, "mallory")

	// a client-supplied author field carries no weight
	rec := postFormAs(router, user, "/posts/create", url.Values{
		"title":        {"my first post"},
		"text":         {"hello"},
		"is_published": {"on"},
		"author_id":    {fmt.Sprint(other.ID)},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile/alice", rec.Header().Get("Location"))

	var post database.Post
	require.NoError(t, gdb.Where("title = ?", "my first post").First(&post).Error)
	assert.Equal(t, user.ID, post.AuthorID)
	assert.True(t, post.IsPublished)
	assert.WithinDuration(t, time.Now(), post.PubDate, time.Minute)
}

func TestCreatePostValidationRedisplaysForm(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()
	user := seedUser(t, gdb, "alice")

	rec := postFormAs(router, user, "/posts/create", url.Values{
		"title": {""},
		"text":  {"body without a title"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Title is required")

	var count int64
	require.NoError(t, gdb.Model(&database.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count, "no partial write on validation failure")
}

func TestCreatePostRejectsForgedChoiceIDs(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()
	user := seedUser(t, gdb, "alice")

	// no category with this ID exists; the form must catch it rather
	// than letting the insert hit the foreign key
	rec := postFormAs(router, user, "/posts/create", url.Values{
		"title":       {"categorized"},
		"text":        {"body"},
		"category_id": {"999"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Choose a category from the list")

	var count int64
	require.NoError(t, gdb.Model(&database.Post{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestEditPostByNonOwnerRedirectsToDetail(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	owner := seedUser(t, gdb, "alice")
	intruder := seedUser(t, gdb, "bob")
	post := seedPost(t, gdb, owner, func(p *database.Post) {
		p.Title = "original title"
	})

	rec := postFormAs(router, intruder, fmt.Sprintf("/posts/%d/edit", post.ID), url.Values{
		"title": {"hijacked"},
		"text":  {"pwned"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d", post.ID), rec.Header().Get("Location"))

	var unchanged database.Post
	require.NoError(t, gdb.First(&unchanged, post.ID).Error)
	assert.Equal(t, "original title", unchanged.Title)
}

func TestDeletePostByNonOwnerRedirectsToDetail(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	owner := seedUser(t, gdb, "alice")
	intruder := seedUser(t, gdb, "bob")
	post := seedPost(t, gdb, owner, nil)

	rec := postFormAs(router, intruder, fmt.Sprintf("/posts/%d/delete", post.ID), url.Values{})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d", post.ID), rec.Header().Get("Location"))

	var still database.Post
	assert.NoError(t, gdb.First(&still, post.ID).Error)
}

func TestDeletePostByOwnerCascades(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	owner := seedUser(t, gdb, "alice")
	commenter := seedUser(t, gdb, "bob")
	post := seedPost(t, gdb, owner, nil)
	require.NoError(t, gdb.Create(&database.Comment{Text: "bye", PostID: post.ID, AuthorID: commenter.ID}).Error)

	rec := postFormAs(router, owner, fmt.Sprintf("/posts/%d/delete", post.ID), url.Values{})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile/alice", rec.Header().Get("Location"))

	var posts, comments int64
	require.NoError(t, gdb.Model(&database.Post{}).Count(&posts).Error)
	require.NoError(t, gdb.Model(&database.Comment{}).Count(&comments).Error)
	assert.Equal(t, int64(0), posts)
	assert.Equal(t, int64(0), comments)
}

func TestCommentDeleteOnlyByItsAuthor(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	postOwner := seedUser(t, gdb, "bob")
	commenter := seedUser(t, gdb, "alice")
	post := seedPost(t, gdb, postOwner, nil)

	comment := database.Comment{Text: "my two cents", PostID: post.ID, AuthorID: commenter.ID}
	require.NoError(t, gdb.Create(&comment).Error)
	deletePath := fmt.Sprintf("/posts/%d/comment/%d/delete", post.ID, comment.ID)

	// owning the post does not grant power over someone else's comment
	rec := postFormAs(router, postOwner, deletePath, url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d", post.ID), rec.Header().Get("Location"))

	var still database.Comment
	require.NoError(t, gdb.First(&still, comment.ID).Error)

	// the comment's author may delete it
	rec = postFormAs(router, commenter, deletePath, url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	var gone database.Comment
	assert.Error(t, gdb.First(&gone, comment.ID).Error)
}

func TestCommentEditOnlyByItsAuthor(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	postOwner := seedUser(t, gdb, "bob")
	commenter := seedUser(t, gdb, "alice")
	post := seedPost(t, gdb, postOwner, nil)

	comment := database.Comment{Text: "first draft", PostID: post.ID, AuthorID: commenter.ID}
	require.NoError(t, gdb.Create(&comment).Error)
	editPath := fmt.Sprintf("/posts/%d/comment/%d/edit", post.ID, comment.ID)

	// the post owner cannot rewrite someone else's comment
	rec := postFormAs(router, postOwner, editPath, url.Values{"text": {"reworded by the host"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, fmt.Sprintf("/posts/%d", post.ID), rec.Header().Get("Location"))

	var untouched database.Comment
	require.NoError(t, gdb.First(&untouched, comment.ID).Error)
	assert.Equal(t, "first draft", untouched.Text)

	rec = postFormAs(router, commenter, editPath, url.Values{"text": {"second draft"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	var edited database.Comment
	require.NoError(t, gdb.First(&edited, comment.ID).Error)
	assert.Equal(t, "second draft", edited.Text)
}

func TestCommentEditKeepsCreatedAt(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	author := seedUser(t, gdb, "alice")
	post := seedPost(t, gdb, author, nil)

	posted := time.Now().Add(-time.Hour).Truncate(time.Second)
	comment := database.Comment{Text: "typo heer", PostID: post.ID, AuthorID: author.ID, CreatedAt: posted}
	require.NoError(t, gdb.Create(&comment).Error)

	rec := postFormAs(router, author, fmt.Sprintf("/posts/%d/comment/%d/edit", post.ID, comment.ID), url.Values{
		"text": {"typo here"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	var edited database.Comment
	require.NoError(t, gdb.First(&edited, comment.ID).Error)
	assert.Equal(t, "typo here", edited.Text)
	assert.WithinDuration(t, posted, edited.CreatedAt, time.Second, "editing must not move the timestamp")
}

func TestCommentCreateNeedsVisiblePost(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	author := seedUser(t, gdb, "alice")
	commenter := seedUser(t, gdb, "bob")
	hidden := seedPost(t, gdb, author, func(p *database.Post) {
		p.IsPublished = false
	})

	rec := postFormAs(router, commenter, fmt.Sprintf("/posts/%d/comment", hidden.ID), url.Values{
		"text": {"can you hear me?"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// the author can still comment on their own hidden post
	rec = postFormAs(router, author, fmt.Sprintf("/posts/%d/comment", hidden.ID), url.Values{
		"text": {"talking to myself"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	var count int64
	require.NoError(t, gdb.Model(&database.Comment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestProfileOwnerSeesScheduledPosts(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()

	owner := seedUser(t, gdb, "alice")
	seedPost(t, gdb, owner, func(p *database.Post) {
		p.Title = "future headline"
		p.PubDate = time.Now().Add(24 * time.Hour)
	})

	// absent from the anonymous home listing
	rec := getAs(router, nil, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "future headline")

	// absent from the profile as seen by others
	rec = getAs(router, nil, "/profile/alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "future headline")

	// present on the owner's own profile
	rec = getAs(router, owner, "/profile/alice")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "future headline")
}

func TestProfileUnknownUserIs404(t *testing.T) {
	setupSiteTest(t)
	router := newTestRouter()

	rec := getAs(router, nil, "/profile/nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEditProfileUpdatesOwnFields(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()
	user := seedUser(t, gdb, "alice")

	rec := postFormAs(router, user, "/profile/edit", url.Values{
		"first_name": {"Alice"},
		"last_name":  {"Liddell"},
		"username":   {"alicia"},
		"email":      {"alice@example.com"},
	})

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/profile/alicia", rec.Header().Get("Location"))

	var updated database.User
	require.NoError(t, gdb.First(&updated, user.ID).Error)
	assert.Equal(t, "alicia", updated.Username)
	assert.Equal(t, "Alice", updated.FirstName)
	assert.Equal(t, "alice@example.com", updated.Email)
}

func TestEditProfileRejectsTakenUsername(t *testing.T) {
	gdb := setupSiteTest(t)
	router := newTestRouter()
	user := seedUser(t, gdb, "alice")
	seedUser(t, gdb, "bob")

	rec := postFormAs(router, user, "/profile/edit", url.Values{
		"username": {"bob"},
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "already taken")

	var unchanged database.User
	require.NoError(t, gdb.First(&unchanged, user.ID).Error)
	assert.Equal(t, "alice", unchanged.Username)
}

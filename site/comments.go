package site

import (
	"net/http"
	"strconv"

	"quill/database"
)

type commentFormData struct {
	Comment *database.Comment
	Form    *CommentForm
}

func postDetailURL(postID uint) string {
	return "/posts/" + strconv.Itoa(int(postID))
}

// findCommentUnderPost resolves the {postID}/{commentID} pair. A
// comment that doesn't belong to the post in the URL is treated as
// missing.
func findCommentUnderPost(r *http.Request) (*database.Comment, bool) {
	postID, ok := parseIDParam(r, "postID")
	if !ok {
		return nil, false
	}
	commentID, ok := parseIDParam(r, "commentID")
	if !ok {
		return nil, false
	}

	var comment database.Comment
	result := database.GetDB().Preload("Author").First(&comment, commentID)
	if result.Error != nil || comment.PostID != postID {
		return nil, false
	}
	return &comment, true
}

// CreateComment appends a comment to a post the requester can see. The
// comment's author always comes from the session.
func CreateComment(w http.ResponseWriter, r *http.Request) {
	user := getSignedInUserOrFail(r)

	postID, ok := parseIDParam(r, "postID")
	if !ok {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}

	// same visibility rule as the detail page: a post you cannot see
	// is a post you cannot comment on
	post, err := database.PostForViewer(database.GetDB(), postID, user.ID, timeNow())
	if err != nil {
		if database.IsNotFound(err) {
			http.Error(w, "Post not found", http.StatusNotFound)
		} else {
			http.Error(w, "Error fetching post", http.StatusInternalServerError)
		}
		return
	}

	form := CommentFormFromRequest(r)
	if !form.Valid() {
		RenderTemplate(w, r, "detail", detailData{Post: post, Form: form})
		return
	}

	comment := database.Comment{
		Text:     form.Text,
		PostID:   post.ID,
		AuthorID: user.ID,
	}
	result := database.GetDB().Create(&comment)
	if result.Error != nil {
		http.Error(w, "Error creating comment", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, postDetailURL(post.ID), http.StatusSeeOther)
}

func EditComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := findCommentUnderPost(r)
	if !ok {
		http.Error(w, "Comment not found", http.StatusNotFound)
		return
	}

	if !ownsOrRedirect(w, r, comment.AuthorID, comment.PostID) {
		return
	}

	switch r.Method {
	case "GET":
		form := &CommentForm{Text: comment.Text, Errors: map[string]string{}}
		RenderTemplate(w, r, "comment", commentFormData{Comment: comment, Form: form})

	case "POST":
		form := CommentFormFromRequest(r)
		if !form.Valid() {
			RenderTemplate(w, r, "comment", commentFormData{Comment: comment, Form: form})
			return
		}

		// created_at stays untouched; only the text column moves
		result := database.GetDB().Model(comment).Update("text", form.Text)
		if result.Error != nil {
			http.Error(w, "Error updating comment", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, postDetailURL(comment.PostID), http.StatusSeeOther)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func DeleteComment(w http.ResponseWriter, r *http.Request) {
	comment, ok := findCommentUnderPost(r)
	if !ok {
		http.Error(w, "Comment not found", http.StatusNotFound)
		return
	}

	if !ownsOrRedirect(w, r, comment.AuthorID, comment.PostID) {
		return
	}

	switch r.Method {
	case "POST":
		result := database.GetDB().Delete(comment)
		if result.Error != nil {
			http.Error(w, "Error deleting comment", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, postDetailURL(comment.PostID), http.StatusSeeOther)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

package site

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"quill/database"
)

type SessionCookieName string

const AuthenticatedUserCookieName = SessionCookieName("authenticated_user")
const AuthenticatedUserTokenCookieName = SessionCookieName("authenticated_user_token")

func getSignedInUserOrNil(r *http.Request) *database.User {
	user, _ := r.Context().Value(AuthenticatedUserCookieName).(*database.User)
	return user
}

func getSignedInUserOrFail(r *http.Request) *database.User {
	user := getSignedInUserOrNil(r)
	if user == nil {
		log.Fatalf("Expected user to be signed in but it wasn't")
	}

	return user
}

func generateAuthToken() (string, error) {
	const tokenLength = 32
	tokenBytes := make([]byte, tokenLength)
	_, err := rand.Read(tokenBytes)
	if err != nil {
		return "", err
	}
	token := base64.URLEncoding.EncodeToString(tokenBytes)
	return token, nil
}

// TryPutUserInContextMiddleware resolves the session cookie to a user
// record and stores it in the request context. Requests without a valid
// cookie proceed anonymously.
func TryPutUserInContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(string(AuthenticatedUserTokenCookieName))
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		var user database.User
		result := database.GetDB().Where(&database.User{SessionToken: cookie.Value}).First(&user)
		if result.Error != nil {
			// Clear the invalid cookie
			http.SetCookie(w, &http.Cookie{
				Name:   string(AuthenticatedUserTokenCookieName),
				Value:  "",
				Path:   "/",
				MaxAge: -1,
			})
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), AuthenticatedUserCookieName, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthProtectedMiddleware bounces anonymous requests to the sign-in
// page before any handler behind it runs.
func AuthProtectedMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getSignedInUserOrNil(r) == nil {
			http.Redirect(w, r, "/signin", http.StatusSeeOther)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// StaffOnlyMiddleware hides the operator screens from everyone without
// the staff flag. Non-staff get a plain 404 so the surface doesn't
// advertise itself.
func StaffOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := getSignedInUserOrNil(r)
		if user == nil || !user.IsStaff {
			http.Error(w, "Page not found", http.StatusNotFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:  string(AuthenticatedUserTokenCookieName),
		Value: token,
		Path:  "/",
	})
}

func UserSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		if getSignedInUserOrNil(r) == nil {
			RenderTemplate(w, r, "signin", nil)
		} else {
			http.Redirect(w, r, "/", http.StatusSeeOther)
		}
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")

	var user database.User
	result := database.GetDB().Where(&database.User{Username: username}).First(&user)
	if result.Error != nil {
		http.Error(w, "Invalid username. You're trying to sign in, but perhaps you still need to sign up?", http.StatusUnauthorized)
		return
	}

	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		http.Error(w, "Invalid password", http.StatusUnauthorized)
		return
	}

	// Generate a new token for the session
	token, err := generateAuthToken()
	if err != nil {
		http.Error(w, "Error signing in", http.StatusInternalServerError)
		return
	}

	user.SessionToken = token
	database.GetDB().Save(&user)

	setSessionCookie(w, token)
	http.Redirect(w, r, "/profile/"+user.Username, http.StatusSeeOther)
}

func UserSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method == "GET" {
		if getSignedInUserOrNil(r) == nil {
			RenderTemplate(w, r, "signup", nil)
		} else {
			http.Redirect(w, r, "/", http.StatusSeeOther)
		}
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	if username == "" || password == "" {
		http.Error(w, "Username and password are both required", http.StatusBadRequest)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Error creating account: "+err.Error(), http.StatusInternalServerError)
		return
	}

	token, err := generateAuthToken()
	if err != nil {
		http.Error(w, "Error creating account: "+err.Error(), http.StatusInternalServerError)
		return
	}

	newUser := database.User{
		Username:     username,
		Email:        r.FormValue("email"),
		PasswordHash: string(passwordHash),
		SessionToken: token,
	}

	result := database.GetDB().Create(&newUser)
	if result.Error != nil {
		http.Error(w, "Error creating account: "+result.Error.Error(), http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, token)
	http.Redirect(w, r, "/profile/"+newUser.Username, http.StatusSeeOther)
}

func UserLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:   string(AuthenticatedUserTokenCookieName),
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	http.Redirect(w, r, "/signin", http.StatusSeeOther)
}

package constants

const (
	APP_NAME = "Quill"

	POSTS_PER_PAGE     = 10
	MAX_TITLE_LENGTH   = 256
	MAX_POST_LENGTH    = 20000
	MAX_COMMENT_LENGTH = 2000

	// multipart memory ceiling for image uploads
	MAX_UPLOAD_BYTES = 10 << 20
)

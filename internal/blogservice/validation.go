package blogservice

import (
	"net/url"
	"strings"

	"github.com/sushihentaime/blogclient/internal/common"
)

const (
	titleMinLength   = 2
	titleMaxLength   = 100
	contentMinLength = 10
	contentMaxLength = 5000
)

func validateTitle(v *common.Validator, title string) {
	title = strings.TrimSpace(title)
	v.Check(title != "", "title", "must be provided")
	v.Check(v.CheckMinLength(title, titleMinLength), "title", "must be at least 2 characters long")
	v.Check(v.CheckMaxLength(title, titleMaxLength), "title", "must not be more than 100 characters long")
}

func validateContent(v *common.Validator, content string) {
	v.Check(strings.TrimSpace(content) != "", "content", "must be provided")
	v.Check(v.CheckMinLength(content, contentMinLength), "content", "must be at least 10 characters long")
	v.Check(v.CheckMaxLength(content, contentMaxLength), "content", "must not be more than 5000 characters long")
}

func validateImage(v *common.Validator, form BlogForm, required bool) {
	if form.ImageFile != nil {
		v.Check(len(form.ImageFile.Data) > 0, "image", "must not be empty")
		v.Check(form.ImageFile.Filename != "", "image", "must have a file name")
		return
	}

	if form.ImageURL == "" {
		v.Check(!required, "image", "must be provided")
		return
	}

	v.Check(isAbsoluteHTTPURL(form.ImageURL), "image", "must be an absolute http or https URL")
}

func validateID(v *common.Validator, id, name string) {
	v.Check(strings.TrimSpace(id) != "", name, "must be provided")
}

func isAbsoluteHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateCreateForm(form BlogForm) error {
	v := common.NewValidator()
	validateTitle(v, form.Title)
	validateContent(v, form.Content)
	validateImage(v, form, true)
	if !v.Valid() {
		return v.ValidationError()
	}

	return nil
}

func validateUpdateForm(form BlogForm) error {
	v := common.NewValidator()
	validateTitle(v, form.Title)
	validateContent(v, form.Content)
	validateImage(v, form, false)
	if !v.Valid() {
		return v.ValidationError()
	}

	return nil
}

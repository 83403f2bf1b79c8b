package userservice

import (
	"regexp"

	"github.com/sushihentaime/blogclient/internal/common"
)

var (
	EmailRX = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

func validateName(v *common.Validator, name string) {
	v.Check(name != "", "name", "must be provided")
	v.Check(v.CheckStringLength(name, 2, 50), "name", "must be between 2 and 50 characters long")
}

func validateEmail(v *common.Validator, email string) {
	v.Check(email != "", "email", "must be provided")
	v.Check(EmailRX.MatchString(email), "email", "must be a valid email address")
}

func validatePassword(v *common.Validator, password string) {
	v.Check(password != "", "password", "must be provided")
	v.Check(v.CheckStringLength(password, 8, 50), "password", "must be between 8 and 50 characters long")
}

func validateToken(v *common.Validator, token string) {
	v.Check(token != "", "token", "must be provided")
}

func validateUser(v *common.Validator, u User) {
	v.Check(u.ID != "", "user", "must have an id")
}

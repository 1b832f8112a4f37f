package middlewares

import (
	"civictrack/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RegisterValidators adds the domain tags used in request bindings:
// issuecategory, issuepriority, issuestatus, role, broadcastrole,
// notificationtype and objectid. Empty values pass; combine with required where needed.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return registerOn(v)
}

func registerOn(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"issuecategory": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || models.IssueCategory(s).Valid()
		},
		"issuepriority": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || models.IssuePriority(s).Valid()
		},
		"issuestatus": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || models.IssueStatus(s).Valid()
		},
		"role": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || models.Role(s).Valid()
		},
		"broadcastrole": func(fl validator.FieldLevel) bool {
			s := models.Role(fl.Field().String())
			return s == "" || s == models.RoleAll || s.Valid()
		},
		"notificationtype": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || models.NotificationType(s).Valid()
		},
		"objectid": func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || primitive.IsValidObjectID(s)
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

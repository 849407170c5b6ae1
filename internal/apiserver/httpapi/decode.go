package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"pocketfiler/internal/shared/apperr"
)

// 对外固定的校验提示
const (
	MsgInvalidBody   = "Invalid request body."
	MsgMissingFields = "Missing required fields."
	MsgInvalidEmail  = "Invalid email format."
	maxJSONBodyBytes = 1 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// 错误信息中使用 json 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register validation %q: %v", tag, err))
		}
	}
	mustRegister("emailfmt", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	})
	return v
}

// ValidEmail 宽松的邮箱格式检查：包含 "@"，且 "@" 之后有 "."
func ValidEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1 && !strings.ContainsAny(email, " \t\r\n")
}

// Decode 解析 JSON 请求体并校验
func Decode(r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(nil, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation(MsgMissingFields)
		}
		return apperr.Wrap(apperr.KindValidation, err, MsgInvalidBody)
	}
	return Validate(dst)
}

// Validate 按 validate 标签校验结构体，返回第一个失败字段对应的提示
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperr.Wrap(apperr.KindValidation, err, MsgInvalidBody)
	}
	return apperr.Wrap(apperr.KindValidation, err, fieldMessage(fieldErrs[0]))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_with", "required_without":
		return MsgMissingFields
	case "emailfmt", "email":
		return MsgInvalidEmail
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters.", fieldLabel(fe.Field()), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s.", fieldLabel(fe.Field()), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s.", fieldLabel(fe.Field()), fe.Param())
	case "oneof":
		return fmt.Sprintf("Invalid %s.", fe.Field())
	default:
		return fmt.Sprintf("Invalid %s.", fe.Field())
	}
}

// fieldLabel "password" → "Password"
func fieldLabel(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

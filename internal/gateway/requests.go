package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dimiximid/mentoring-plat/internal/model"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// 検証エラーのフィールド名をJSONのキー名で報告する
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName は構造体フィールドのjsonタグまたはuriタグの名前を返す。
func jsonFieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "uri"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// registerRequest は POST /api/register のリクエストボディ。
type registerRequest struct {
	Email     string     `json:"email" binding:"required,email"`
	Password  string     `json:"password" binding:"required"`
	Name      string     `json:"name" binding:"required"`
	Role      model.Role `json:"role" binding:"required,oneof=mentor mentee"`
	Expertise string     `json:"expertise"`
	Bio       string     `json:"bio"`
}

// loginRequest は POST /api/login のリクエストボディ。
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// createConnectionRequest は POST /api/connections のリクエストボディ。
type createConnectionRequest struct {
	MentorID string `json:"mentor_id" binding:"required,uuid"`
}

// sendMessageRequest は POST /api/messages のリクエストボディ。
type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required,uuid"`
	Content    string `json:"content" binding:"required"`
}

// userPath は :user_id を含むパスパラメータ。
// UUIDに限定することでPostgRESTのor=(...)フィルタへの混入も防ぐ。
type userPath struct {
	UserID string `uri:"user_id" binding:"required,uuid"`
}

// bindError はバインド・検証エラーをクライアント向けのメッセージに変換する。
// デコーダーや検証ライブラリのエラー文字列はそのまま返さない。
func bindError(err error) error {
	return model.WrapError(model.KindValidation, bindMessage(err), err)
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", fe.Field())
		case "email":
			return fmt.Sprintf("%s must be a valid email address", fe.Field())
		case "uuid":
			return fmt.Sprintf("%s must be a valid UUID", fe.Field())
		case "oneof":
			return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
		default:
			return fmt.Sprintf("%s is invalid", fe.Field())
		}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("%s has an invalid type", typeErr.Field)
	}
	return "Invalid request body"
}

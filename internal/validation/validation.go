package validation

import (
	"errors"
	"fmt"
	"mime/multipart"
	"reflect"
	"regexp"
	"strings"

	"github.com/fedutinova/speechcoach/internal/audio"
	"github.com/fedutinova/speechcoach/internal/common"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

const (
	MaxAudioSize        = audio.MaxAudioSize
	MaxTranscriptLength = 100_000
	MaxOwnerIDLength    = 128
)

var contextTagPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Submission carries the user supplied fields of a new analysis job.
type Submission struct {
	OwnerID    string `json:"owner_id" validate:"required,max=128"`
	AudioRef   string `json:"audio_ref" validate:"required,max=1024"`
	Transcript string `json:"transcript" validate:"max=100000"`
	Context    string `json:"context" validate:"omitempty,max=64,contexttag"`
	Language   string `json:"language" validate:"omitempty,oneof=en es"`
}

type ValidationErrors []common.ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Is makes ValidationErrors match common.ErrValidation.
func (e ValidationErrors) Is(target error) bool {
	return target == common.ErrValidation
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("contexttag", func(fl validator.FieldLevel) bool {
		return contextTagPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateSubmission returns nil or ValidationErrors.
func ValidateSubmission(s Submission) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, common.ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "contexttag":
		return "must be lowercase letters, digits and underscores, starting with a letter"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// ValidateAudioUpload checks an uploaded recording using its size and the
// sniffed content of its first bytes.
func ValidateAudioUpload(file *multipart.FileHeader, head []byte) ValidationErrors {
	var errs ValidationErrors

	if file.Size == 0 || len(head) == 0 {
		errs = append(errs, common.ValidationError{
			Field:   "audio",
			Message: fmt.Sprintf("file %s is empty", file.Filename),
		})
		return errs
	}

	if file.Size > MaxAudioSize {
		errs = append(errs, common.ValidationError{
			Field:   "audio",
			Message: fmt.Sprintf("file %s exceeds maximum size of %d bytes", file.Filename, MaxAudioSize),
		})
	}

	detected := mimetype.Detect(head)
	if !audio.IsSupportedContentType(detected.String()) {
		errs = append(errs, common.ValidationError{
			Field:   "audio",
			Message: fmt.Sprintf("file %s has unsupported content type: %s", file.Filename, detected.String()),
		})
	}

	return errs
}

package tlv

import (
	"errors"
	"fmt"

	"github.com/iniwex5/simprofile/pkg/codec"
	"github.com/iniwex5/simprofile/pkg/sim"
)

var (
	ErrFieldTooLong  = errors.New("field exceeds maximum length")
	ErrInvalidDigits = errors.New("field contains invalid characters")
)

const (
	maxICCIDDigits = 20
	maxSMSCDigits  = codec.SMSCRecordLen - 4 // 长度字节 + TON 字节
	maxValueLen    = 0xff                    // 单字节长度字段
)

// FieldError 字段校验失败
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Validate 编码前检查字段是否满足协议上限
// 编码函数本身不做检查，超长输入会 panic
func Validate(p *sim.Profile) error {
	if p.IMSI != "" {
		if !codec.IsDigits(p.IMSI) {
			return &FieldError{Field: "imsi", Err: ErrInvalidDigits}
		}
		if len(p.IMSI) > codec.IMSIMaxDigits {
			return &FieldError{Field: "imsi", Err: fmt.Errorf("%w: %d digits", ErrFieldTooLong, len(p.IMSI))}
		}
	}
	if p.ICCID != "" {
		if !isHexDigits(p.ICCID) {
			return &FieldError{Field: "iccid", Err: ErrInvalidDigits}
		}
		if len(p.ICCID) > maxICCIDDigits {
			return &FieldError{Field: "iccid", Err: fmt.Errorf("%w: %d digits", ErrFieldTooLong, len(p.ICCID))}
		}
	}
	if p.SMSC != "" {
		if n := len(codec.Digits(p.SMSC)); n > maxSMSCDigits {
			return &FieldError{Field: "smsc", Err: fmt.Errorf("%w: %d digits", ErrFieldTooLong, n)}
		}
	}

	hexFields := []struct {
		name, value string
	}{
		{"opc", p.OPC}, {"k", p.K}, {"kic", p.KIC}, {"kid", p.KID}, {"smsp", p.SMSP},
	}
	for _, f := range hexFields {
		if f.value == "" {
			continue
		}
		if !codec.IsHex(f.value) {
			return &FieldError{Field: f.name, Err: ErrInvalidDigits}
		}
		if len(f.value) > maxValueLen {
			return &FieldError{Field: f.name, Err: ErrFieldTooLong}
		}
	}

	asciiFields := []struct {
		name, value string
	}{
		{"pin", p.PIN}, {"puk", p.PUK}, {"adm", p.ADM},
	}
	for _, f := range asciiFields {
		if len(f.value)*2 > maxValueLen {
			return &FieldError{Field: f.name, Err: ErrFieldTooLong}
		}
	}
	return nil
}

func isHexDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}

package crypto

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/multierr"

	"github.com/iniwex5/simprofile/pkg/keystore"
	"github.com/iniwex5/simprofile/pkg/sim"
)

var (
	ErrEncoding = errors.New("invalid base64 ciphertext")
	ErrDecrypt  = errors.New("rsa decryption failed")
	ErrDecode   = errors.New("decrypted payload is not a valid profile")
)

// Padding RSA 解密填充方案
type Padding int

const (
	PaddingPKCS1v15 Padding = iota // 当前供应商使用
	PaddingOAEPSHA1                // 早期版本
	PaddingOAEPSHA256
)

func (p Padding) String() string {
	switch p {
	case PaddingPKCS1v15:
		return "pkcs1v15"
	case PaddingOAEPSHA1:
		return "oaep-sha1"
	case PaddingOAEPSHA256:
		return "oaep-sha256"
	default:
		return fmt.Sprintf("unknown-padding(%d)", int(p))
	}
}

// ParsePadding 从配置字符串解析填充方案
func ParsePadding(s string) (Padding, error) {
	for _, p := range []Padding{PaddingPKCS1v15, PaddingOAEPSHA1, PaddingOAEPSHA256} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown padding %q", s)
}

// Decrypter 把加密记录转换为结构化 Profile
type Decrypter interface {
	DecryptProfile(ep sim.EncryptedProfile) (*sim.Profile, error)
}

// Decryptor RSA 解密器
// 不保存跨调用的状态，可被多个 goroutine 并发使用
type Decryptor struct {
	key     *keystore.PrivateKey
	padding Padding
}

type Option func(*Decryptor)

// WithPadding 覆盖默认的 PKCS#1 v1.5 填充
func WithPadding(p Padding) Option {
	return func(d *Decryptor) {
		d.padding = p
	}
}

func NewDecryptor(key *keystore.PrivateKey, opts ...Option) *Decryptor {
	d := &Decryptor{key: key, padding: PaddingPKCS1v15}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Decryptor) Padding() Padding { return d.padding }

// Decrypt base64 解码 -> RSA 解密 -> JSON 反序列化
func (d *Decryptor) Decrypt(ciphertext string) (*sim.Profile, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	plain, err := d.rsaDecrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrDecrypt, d.padding, err)
	}

	return decodeProfile(plain)
}

// DecryptProfile 解密一条记录，缺少 ICCID 时用外层记录补齐
func (d *Decryptor) DecryptProfile(ep sim.EncryptedProfile) (*sim.Profile, error) {
	if err := ep.Validate(); err != nil {
		return nil, err
	}
	p, err := d.Decrypt(ep.Profile)
	if err != nil {
		return nil, err
	}
	return p.WithICCID(ep.ICCID), nil
}

// DecryptAll 逐条解密，单条失败不影响其他记录
// 至少一条成功时返回所有成功结果，失败合并在 error 中；
// 全部失败时返回第一个错误
func (d *Decryptor) DecryptAll(eps []sim.EncryptedProfile) ([]*sim.Profile, error) {
	var (
		out   []*sim.Profile
		errs  error
		first error
	)
	for _, ep := range eps {
		p, err := d.DecryptProfile(ep)
		if err != nil {
			err = fmt.Errorf("iccid %s: %w", ep.ICCID, err)
			if first == nil {
				first = err
			}
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, first
	}
	return out, errs
}

func (d *Decryptor) rsaDecrypt(raw []byte) ([]byte, error) {
	priv := d.key.RSA()
	switch d.padding {
	case PaddingPKCS1v15:
		return rsa.DecryptPKCS1v15(nil, priv, raw)
	case PaddingOAEPSHA1:
		return rsa.DecryptOAEP(sha1.New(), nil, priv, raw, nil)
	case PaddingOAEPSHA256:
		return rsa.DecryptOAEP(sha256.New(), nil, priv, raw, nil)
	default:
		return nil, fmt.Errorf("unsupported padding %s", d.padding)
	}
}

func decodeProfile(plain []byte) (*sim.Profile, error) {
	if !utf8.Valid(plain) {
		return nil, fmt.Errorf("%w: payload is not valid UTF-8", ErrDecode)
	}
	trimmed := bytes.TrimSpace(plain)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrDecode)
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var p sim.Profile
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after profile object", ErrDecode)
	}
	return &p, nil
}

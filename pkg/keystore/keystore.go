package keystore

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/multierr"
)

// Format 私钥编码格式
type Format int

const (
	PKCS8PEM Format = iota + 1
	PKCS1PEM
	PKCS8DER
	PKCS1DER
)

func (f Format) String() string {
	switch f {
	case PKCS8PEM:
		return "pkcs8-pem"
	case PKCS1PEM:
		return "pkcs1-pem"
	case PKCS8DER:
		return "pkcs8-der"
	case PKCS1DER:
		return "pkcs1-der"
	default:
		return fmt.Sprintf("unknown-format(%d)", int(f))
	}
}

var (
	ErrKeyFormat = errors.New("failed to decode private key")
	ErrNotText   = errors.New("key data is not valid UTF-8 text")
	ErrNoPEM     = errors.New("no PEM block found")
	ErrNotRSA    = errors.New("private key is not an RSA key")
)

// PrivateKey 已加载的 RSA 私钥及其来源
// 加载后只读，可在任意数量的解密调用之间共享
type PrivateKey struct {
	key    *rsa.PrivateKey
	Path   string
	Format Format
}

// RSA 返回底层 RSA 私钥
func (k *PrivateKey) RSA() *rsa.PrivateKey {
	return k.key
}

// Attempt 一次解析尝试的结果
type Attempt struct {
	Format Format
	Err    error
}

// KeyFormatError 所有候选格式均解析失败
type KeyFormatError struct {
	Path     string
	Attempts []Attempt
}

func (e *KeyFormatError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Format, a.Err))
	}
	if e.Path != "" {
		return fmt.Sprintf("%v %s (%s)", ErrKeyFormat, e.Path, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%v (%s)", ErrKeyFormat, strings.Join(parts, "; "))
}

func (e *KeyFormatError) Unwrap() error {
	return ErrKeyFormat
}

// Causes 返回按尝试顺序合并后的底层错误
func (e *KeyFormatError) Causes() error {
	var err error
	for _, a := range e.Attempts {
		err = multierr.Append(err, fmt.Errorf("%s: %w", a.Format, a.Err))
	}
	return err
}

type parser struct {
	format Format
	text   bool // 需要 UTF-8 文本输入
	parse  func([]byte) (*rsa.PrivateKey, error)
}

// 固定的探测顺序: PEM 优先，PKCS#8 优先
var parsers = []parser{
	{PKCS8PEM, true, parsePKCS8PEM},
	{PKCS1PEM, true, parsePKCS1PEM},
	{PKCS8DER, false, parsePKCS8DER},
	{PKCS1DER, false, x509.ParsePKCS1PrivateKey},
}

// Parse 按固定顺序尝试四种编码，返回第一个成功的结果
// 全部失败时返回 *KeyFormatError，包含每种格式的失败原因
func Parse(data []byte, path string) (*PrivateKey, error) {
	isText := utf8.Valid(data)
	attempts := make([]Attempt, 0, len(parsers))

	for _, p := range parsers {
		if p.text && !isText {
			attempts = append(attempts, Attempt{Format: p.format, Err: ErrNotText})
			continue
		}
		key, err := p.parse(data)
		if err == nil {
			return &PrivateKey{key: key, Path: path, Format: p.format}, nil
		}
		attempts = append(attempts, Attempt{Format: p.format, Err: err})
	}

	return nil, &KeyFormatError{Path: path, Attempts: attempts}
}

// Load 读取私钥文件并解析
func Load(path string) (*PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}
	return Parse(data, path)
}

func parsePKCS8PEM(data []byte) (*rsa.PrivateKey, error) {
	der, err := pemBlock(data, "PRIVATE KEY")
	if err != nil {
		return nil, err
	}
	return parsePKCS8DER(der)
}

func parsePKCS1PEM(data []byte) (*rsa.PrivateKey, error) {
	der, err := pemBlock(data, "RSA PRIVATE KEY")
	if err != nil {
		return nil, err
	}
	return x509.ParsePKCS1PrivateKey(der)
}

func parsePKCS8DER(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrNotRSA, key)
	}
	return rsaKey, nil
}

// pemBlock 取第一个 PEM 块，类型必须与 label 一致
func pemBlock(data []byte, label string) ([]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrNoPEM
	}
	if block.Type != label {
		return nil, fmt.Errorf("unexpected PEM label %q, want %q", block.Type, label)
	}
	return block.Bytes, nil
}

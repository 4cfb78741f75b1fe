package keystore

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("生成 RSA 密钥失败: %v", err)
	}
	return key
}

func TestParseAllFormats(t *testing.T) {
	key := testKey(t)
	pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey 失败: %v", err)
	}
	pkcs1 := x509.MarshalPKCS1PrivateKey(key)

	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"pkcs8 pem", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8}), PKCS8PEM},
		{"pkcs1 pem", pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: pkcs1}), PKCS1PEM},
		{"pkcs8 der", pkcs8, PKCS8DER},
		{"pkcs1 der", pkcs1, PKCS1DER},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.data, "test")
			if err != nil {
				t.Fatalf("Parse 失败: %v", err)
			}
			if got.Format != tt.want {
				t.Errorf("格式错误: got %v, want %v", got.Format, tt.want)
			}
			if !got.RSA().Equal(key) {
				t.Error("解析出的密钥与原始密钥不一致")
			}
			if got.Path != "test" {
				t.Errorf("Path = %q, want %q", got.Path, "test")
			}
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"text", []byte("this is not a key")},
		{"binary", []byte{0xff, 0xfe, 0x00, 0x80, 0x81}},
		{"wrong pem label", pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1, 2, 3}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data, "bad.key")
			if err == nil {
				t.Fatal("期望解析失败")
			}
			if !errors.Is(err, ErrKeyFormat) {
				t.Errorf("错误类型错误: %v", err)
			}
			var kfe *KeyFormatError
			if !errors.As(err, &kfe) {
				t.Fatalf("期望 *KeyFormatError, got %T", err)
			}
			if len(kfe.Attempts) != 4 {
				t.Fatalf("尝试次数错误: got %d, want 4", len(kfe.Attempts))
			}
			order := []Format{PKCS8PEM, PKCS1PEM, PKCS8DER, PKCS1DER}
			for i, a := range kfe.Attempts {
				if a.Format != order[i] {
					t.Errorf("attempt %d: got %v, want %v", i, a.Format, order[i])
				}
				if a.Err == nil {
					t.Errorf("attempt %d: missing error", i)
				}
				if !strings.Contains(err.Error(), a.Format.String()) {
					t.Errorf("错误信息缺少 %s: %s", a.Format, err)
				}
			}
			if kfe.Causes() == nil {
				t.Error("Causes() 不应为 nil")
			}
		})
	}
}

func TestParseBinarySkipsPEM(t *testing.T) {
	_, err := Parse([]byte{0xff, 0xff, 0xff}, "")
	var kfe *KeyFormatError
	if !errors.As(err, &kfe) {
		t.Fatalf("期望 *KeyFormatError, got %v", err)
	}
	for _, a := range kfe.Attempts[:2] {
		if !errors.Is(a.Err, ErrNotText) {
			t.Errorf("%v: got %v, want ErrNotText", a.Format, a.Err)
		}
	}
}

func TestParseRejectsNonRSA(t *testing.T) {
	ec, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("生成 EC 密钥失败: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(ec)
	if err != nil {
		t.Fatalf("MarshalPKCS8PrivateKey 失败: %v", err)
	}

	_, err = Parse(der, "")
	var kfe *KeyFormatError
	if !errors.As(err, &kfe) {
		t.Fatalf("期望 *KeyFormatError, got %v", err)
	}
	if !errors.Is(kfe.Attempts[2].Err, ErrNotRSA) {
		t.Errorf("pkcs8-der: got %v, want ErrNotRSA", kfe.Attempts[2].Err)
	}
}

func TestLoad(t *testing.T) {
	key := testKey(t)
	path := filepath.Join(t.TempDir(), "key")
	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("写入密钥文件失败: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	if got.Path != path || got.Format != PKCS1PEM {
		t.Errorf("got path=%q format=%v", got.Path, got.Format)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("期望读取不存在的文件失败")
	}
}

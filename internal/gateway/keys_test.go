package gateway

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"sync"
	"testing"
)

// testKeys holds one generated key pair in every encoding the parsers accept.
type testKeys struct {
	key        *rsa.PrivateKey
	pkcs8PEM   string
	pkcs1PEM   string
	pkcs8Raw   string
	publicPEM  string
	publicRaw  string
	pkcs1PubPM string
}

var (
	keysOnce sync.Once
	keys     testKeys
)

func loadKeys(t *testing.T) testKeys {
	t.Helper()
	keysOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		pkcs8, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			panic(err)
		}
		pkix, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			panic(err)
		}
		keys = testKeys{
			key:        key,
			pkcs8PEM:   string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8})),
			pkcs1PEM:   string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})),
			pkcs8Raw:   base64.StdEncoding.EncodeToString(pkcs8),
			publicPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pkix})),
			publicRaw:  base64.StdEncoding.EncodeToString(pkix),
			pkcs1PubPM: string(pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&key.PublicKey)})),
		}
	})
	return keys
}

package sosac

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"strings"
)

var errBadCiphertext = errors.New("sosac: malformed encrypted payload")

const saltedPrefix = "Salted__"

// decryptPassphrase reverses CryptoJS.AES.encrypt(plain, passphrase): base64
// of "Salted__" + 8-byte salt + AES-256-CBC ciphertext, with key and IV
// derived by OpenSSL's EVP_BytesToKey over MD5.
func decryptPassphrase(encoded, passphrase string) ([]byte, error) {
	encoded = strings.Join(strings.Fields(encoded), "")
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(raw) < 16 || string(raw[:8]) != saltedPrefix {
		return nil, errBadCiphertext
	}
	salt, ciphertext := raw[8:16], raw[16:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errBadCiphertext
	}

	key, iv := bytesToKey([]byte(passphrase), salt, 32, aes.BlockSize)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return unpad(plain)
}

func bytesToKey(passphrase, salt []byte, keyLen, ivLen int) ([]byte, []byte) {
	var derived, prev []byte
	for len(derived) < keyLen+ivLen {
		sum := md5.Sum(append(append(append([]byte{}, prev...), passphrase...), salt...))
		prev = sum[:]
		derived = append(derived, prev...)
	}
	return derived[:keyLen], derived[keyLen : keyLen+ivLen]
}

func unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errBadCiphertext
	}
	n := int(data[len(data)-1])
	if n == 0 || n > aes.BlockSize || n > len(data) {
		return nil, errBadCiphertext
	}
	if !bytes.Equal(data[len(data)-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return nil, errBadCiphertext
	}
	return data[:len(data)-n], nil
}

package webshare

import (
	"crypto/md5"
	"strings"
)

const (
	md5cryptMagic = "$1$"
	cryptAlphabet = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
)

// md5crypt computes the FreeBSD "$1$" password hash. Webshare hands out the
// salt and expects sha1(md5crypt(password, salt)) on login.
func md5crypt(password, salt string) string {
	salt = strings.TrimPrefix(salt, md5cryptMagic)
	if idx := strings.IndexByte(salt, '$'); idx >= 0 {
		salt = salt[:idx]
	}
	if len(salt) > 8 {
		salt = salt[:8]
	}
	pw := []byte(password)

	alt := md5.Sum([]byte(password + salt + password))

	ctx := md5.New()
	ctx.Write(pw)
	ctx.Write([]byte(md5cryptMagic + salt))
	for n := len(pw); n > 0; n -= 16 {
		ctx.Write(alt[:min(n, 16)])
	}
	for i := len(pw); i > 0; i >>= 1 {
		if i&1 == 1 {
			ctx.Write([]byte{0})
		} else {
			ctx.Write(pw[:1])
		}
	}
	final := ctx.Sum(nil)

	for i := 0; i < 1000; i++ {
		round := md5.New()
		if i&1 == 1 {
			round.Write(pw)
		} else {
			round.Write(final)
		}
		if i%3 != 0 {
			round.Write([]byte(salt))
		}
		if i%7 != 0 {
			round.Write(pw)
		}
		if i&1 == 1 {
			round.Write(final)
		} else {
			round.Write(pw)
		}
		final = round.Sum(nil)
	}

	var out strings.Builder
	out.WriteString(md5cryptMagic + salt + "$")
	groups := [][3]int{{0, 6, 12}, {1, 7, 13}, {2, 8, 14}, {3, 9, 15}, {4, 10, 5}}
	for _, g := range groups {
		encode64(&out, uint(final[g[0]])<<16|uint(final[g[1]])<<8|uint(final[g[2]]), 4)
	}
	encode64(&out, uint(final[11]), 2)
	return out.String()
}

func encode64(out *strings.Builder, value uint, n int) {
	for ; n > 0; n-- {
		out.WriteByte(cryptAlphabet[value&0x3f])
		value >>= 6
	}
}

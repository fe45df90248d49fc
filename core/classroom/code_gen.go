package classroom

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"

	"github.com/trezcool/darasa/core"
)

// Join codes are 3 uppercase letters followed by 3 digits (eg. "KCD205"),
// short enough to dictate in class and large enough a space (26³ × 10³ =
// 17,576,000) that collisions stay negligible at practical scale.
const (
	codeLetterCount = 3
	codeDigitCount  = 3
	CodeLength      = codeLetterCount + codeDigitCount

	maxCodeAttempts = 100
)

var (
	codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeDigits  = "0123456789"
	tokenChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	codeRegex = regexp.MustCompile(`^[A-Z]{3}[0-9]{3}$`)

	generateCodeFunc = generateCode // mockable
)

func randIdx(n int) int {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return int(idx.Int64())
}

// generateCode draws each character independently and uniformly.
// It does not guarantee global uniqueness; see generateUniqueCode.
func generateCode() string {
	b := make([]byte, 0, CodeLength)
	for i := 0; i < codeLetterCount; i++ {
		b = append(b, codeLetters[randIdx(len(codeLetters))])
	}
	for i := 0; i < codeDigitCount; i++ {
		b = append(b, codeDigits[randIdx(len(codeDigits))])
	}
	return string(b)
}

// IsValidCode reports whether the (case-normalized) code is a well-formed join code.
func IsValidCode(code string) bool {
	return codeRegex.MatchString(core.CleanStringUpper(code))
}

// generateUniqueCode returns a code absent from existingCodes. The attempt
// bound keeps latency bounded should the code space ever approach saturation;
// callers get ErrCodeExhausted rather than a livelock.
func generateUniqueCode(existingCodes []string) (string, error) {
	taken := make(map[string]struct{}, len(existingCodes))
	for _, c := range existingCodes {
		taken[strings.ToUpper(c)] = struct{}{}
	}
	for i := 0; i < maxCodeAttempts; i++ {
		code := generateCodeFunc()
		if _, ok := taken[code]; !ok {
			return code, nil
		}
	}
	return "", ErrCodeExhausted
}

// RandomToken returns a cryptographically random alphanumeric string of
// length n. It is not uniqueness-checked; meant for one-off secrets.
func RandomToken(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = tokenChars[randIdx(len(tokenChars))]
	}
	return string(b)
}

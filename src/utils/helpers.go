package utils

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vms/src/types"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhoneNumber converts a Kenyan MSISDN in any of the accepted entry
// formats (2547XXXXXXXX, 07XXXXXXXX, 7XXXXXXXX, optionally with a leading +
// or internal whitespace) into the canonical 2547XXXXXXXX form.
func NormalizePhoneNumber(phone string) (string, error) {
	digits := nonDigits.ReplaceAllString(phone, "")
	switch {
	case strings.HasPrefix(digits, "2547") && len(digits) == 12:
		return digits, nil
	case strings.HasPrefix(digits, "07") && len(digits) == 10:
		return "254" + digits[1:], nil
	case strings.HasPrefix(digits, "7") && len(digits) == 9:
		return "254" + digits, nil
	default:
		return "", types.NewValidationError("invalid Kenyan phone number format: %s", phone)
	}
}

func jwtKey() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

func GenerateJWT(email string, vendorId uint) (string, error) {
	now := time.Now()
	claims := types.Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(vendorId), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString(jwtKey())
}

func ParseJWT(tokenString string) (*types.Claims, error) {
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return jwtKey(), nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	return claims, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

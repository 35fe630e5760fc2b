package auth

import (
	"crypto/rand"
	"math"
	"math/big"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the provider floor below which passwords are weak.
const MinPasswordLength = 6

// Requirement is one password rule with its i18n label.
type Requirement struct {
	Pattern *regexp.Regexp
	Label   string
}

// Requirements are the rules shown next to password inputs.
var Requirements = []Requirement{
	{regexp.MustCompile(`[0-9]`), "includes_number"},
	{regexp.MustCompile(`[a-z]`), "includes_lowercase_letter"},
	{regexp.MustCompile(`[A-Z]`), "includes_uppercase_letter"},
	{regexp.MustCompile(`[$&+,:;=?@#|'<>.^*()%!-]`), "includes_special_symbol"},
}

// RequirementStatus reports whether password meets a requirement.
type RequirementStatus struct {
	Label string `json:"label"`
	Meets bool   `json:"meets"`
}

// Check evaluates every requirement.
func Check(password string) []RequirementStatus {
	out := make([]RequirementStatus, len(Requirements))
	for i, r := range Requirements {
		out[i] = RequirementStatus{Label: r.Label, Meets: r.Pattern.MatchString(password)}
	}
	return out
}

// Strength scores password from 10 to 100. Every failed requirement, and a
// length of five or less, costs an equal share.
func Strength(password string) int {
	multiplier := 0
	if len(password) <= 5 {
		multiplier = 1
	}
	for _, r := range Requirements {
		if !r.Pattern.MatchString(password) {
			multiplier++
		}
	}
	score := 100 - 100/float64(len(Requirements)+1)*float64(multiplier)
	return int(math.Round(math.Max(score, 10)))
}

// Strong reports whether password is long enough and meets every
// requirement.
func Strong(password string) bool {
	if len(password) < MinPasswordLength {
		return false
	}
	for _, r := range Requirements {
		if !r.Pattern.MatchString(password) {
			return false
		}
	}
	return true
}

const (
	upperKeys  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	lowerKeys  = "abcdefghijklmnopqrstuvwxyz"
	numberKeys = "0123456789"
	symbolKeys = "$&+,:;=?@#|'<>.^*()%!-"
)

// GeneratePassword returns a random password of length characters (at
// least four) ending with one upper case letter, one lower case letter, one
// digit and one symbol.
func GeneratePassword(length int) (string, error) {
	sets := []string{upperKeys, lowerKeys, numberKeys, symbolKeys}
	out := make([]byte, 0, max(length, len(sets)))
	for len(out) < length-len(sets) {
		set, err := randIndex(len(sets))
		if err != nil {
			return "", err
		}
		c, err := pick(sets[set])
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for _, set := range sets {
		c, err := pick(set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	return string(out), nil
}

func pick(set string) (byte, error) {
	i, err := randIndex(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// HashPassword hashes the password.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPasswordHash checks if the password matches the hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Package validators holds the Brazilian document/contact format checks the
// funnel depends on: CPF check digits, phone DDD ranges, IMEI Luhn, CEP.
package validators

import (
	"regexp"
	"strings"
	"time"
)

var nonDigits = regexp.MustCompile(`\D`)

// OnlyDigits strips everything but 0-9.
func OnlyDigits(value string) string {
	return nonDigits.ReplaceAllString(value, "")
}

var repeatedCPF = regexp.MustCompile(`^(?:0{11}|1{11}|2{11}|3{11}|4{11}|5{11}|6{11}|7{11}|8{11}|9{11})$`)

// ValidateCPF checks the 11-digit CPF including both check digits.
// Accepts formatted ("123.456.789-09") or raw input.
func ValidateCPF(cpf string) bool {
	clean := OnlyDigits(cpf)

	if len(clean) != 11 {
		return false
	}
	if repeatedCPF.MatchString(clean) {
		return false
	}

	// First check digit
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(clean[i]-'0') * (10 - i)
	}
	remainder := (sum * 10) % 11
	if remainder == 10 || remainder == 11 {
		remainder = 0
	}
	if remainder != int(clean[9]-'0') {
		return false
	}

	// Second check digit
	sum = 0
	for i := 0; i < 10; i++ {
		sum += int(clean[i]-'0') * (11 - i)
	}
	remainder = (sum * 10) % 11
	if remainder == 10 || remainder == 11 {
		remainder = 0
	}
	return remainder == int(clean[10]-'0')
}

// FormatCPF renders 11 digits as 123.456.789-09. Shorter input is formatted
// as far as it goes.
func FormatCPF(value string) string {
	clean := OnlyDigits(value)
	if len(clean) > 11 {
		clean = clean[:11]
	}

	var b strings.Builder
	for i, r := range clean {
		switch i {
		case 3, 6:
			b.WriteByte('.')
		case 9:
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// validDDDs is the set of in-use Brazilian area codes.
var validDDDs = map[int]bool{
	11: true, 12: true, 13: true, 14: true, 15: true, 16: true, 17: true, 18: true, 19: true,
	21: true, 22: true, 24: true, 27: true, 28: true,
	31: true, 32: true, 33: true, 34: true, 35: true, 37: true, 38: true,
	41: true, 42: true, 43: true, 44: true, 45: true, 46: true, 47: true, 48: true, 49: true,
	51: true, 53: true, 54: true, 55: true,
	61: true, 62: true, 63: true, 64: true, 65: true, 66: true, 67: true, 68: true, 69: true,
	71: true, 73: true, 74: true, 75: true, 77: true, 79: true,
	81: true, 82: true, 83: true, 84: true, 85: true, 86: true, 87: true, 88: true, 89: true,
	91: true, 92: true, 93: true, 94: true, 95: true, 96: true, 97: true, 98: true, 99: true,
}

// ValidatePhone checks a Brazilian phone: valid DDD plus either an 11-digit
// mobile (leading 9) or a 10-digit landline (leading 2-5).
func ValidatePhone(phone string) bool {
	clean := OnlyDigits(phone)

	if len(clean) != 10 && len(clean) != 11 {
		return false
	}

	ddd := int(clean[0]-'0')*10 + int(clean[1]-'0')
	if !validDDDs[ddd] {
		return false
	}

	first := clean[2] - '0'
	if len(clean) == 11 {
		return first == 9
	}
	return first >= 2 && first <= 5
}

// MaskPhone hides all but the last four digits for display.
func MaskPhone(phone string) string {
	clean := OnlyDigits(phone)
	if len(clean) < 4 {
		return "****"
	}
	return "*****" + clean[len(clean)-4:]
}

// ValidateIMEI checks a 15-digit IMEI using the Luhn algorithm.
func ValidateIMEI(imei string) bool {
	clean := strings.NewReplacer(" ", "", "-", "").Replace(imei)

	if len(clean) != 15 {
		return false
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return false
		}
	}

	sum := 0
	for i := 0; i < 14; i++ {
		digit := int(clean[i] - '0')
		if i%2 == 1 {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
	}

	check := (10 - sum%10) % 10
	return check == int(clean[14]-'0')
}

// ValidateCEP accepts any 8-digit postal code.
func ValidateCEP(cep string) bool {
	return len(OnlyDigits(cep)) == 8
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ParseBirthDate parses DD/MM/YYYY and rejects dates before 1900 or in the
// future.
func ParseBirthDate(value string) (time.Time, bool) {
	t, err := time.Parse("02/01/2006", value)
	if err != nil {
		return time.Time{}, false
	}
	if t.Year() < 1900 || t.After(time.Now()) {
		return time.Time{}, false
	}
	return t, true
}

// IsAdult reports whether the birth date makes the person 18 or older at now.
func IsAdult(birthDate, now time.Time) bool {
	age := now.Year() - birthDate.Year()
	anniversary := birthDate.AddDate(age, 0, 0)
	if anniversary.After(now) {
		age--
	}
	return age >= 18
}

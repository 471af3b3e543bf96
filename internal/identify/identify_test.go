package identify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLooksLikePhone(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0912345678", true},
		{"0912-345-678", true},
		{"+886 912 345 678", true},
		{"02-1234567#12", true},
		{"12345", false},              // too few digits
		{"0912345678中", false},        // CJK never phone
		{"陳小姐", false},                // CJK name
		{"09123456xyzw", false},       // four non-separator chars
		{"(02)12345678", true},        // two extras tolerated
		{"abc", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikePhone(tt.in))
		})
	}
}

func TestLooksLikeCustomerCode(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"C115", true},
		{"c115", true},
		{"C1", true}, // letter-first alphanumeric
		{"12345", true},
		{"ABC", false}, // no digit
		{"A-1 23", true},
		{"c_115", true},
		{"", false},
		{"   ", false},
		{"1A2", false}, // digit-first mixed is not a code
		{"C115!", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikeCustomerCode(tt.in))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindPhone, Classify("0912345678"))
	assert.Equal(t, KindCode, Classify("C115"))
	assert.Equal(t, KindCode, Classify("12345")) // five digits: not enough for phone, numeric code
	assert.Equal(t, KindName, Classify("王小明"))
}

func TestClassifyPhoneBeforeCode(t *testing.T) {
	// An all-digit string long enough to be a phone is classified as phone
	// even though it also satisfies the code shape.
	assert.Equal(t, KindPhone, Classify("0912345678"))
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "C115", NormalizeCode(" c115 "))
}

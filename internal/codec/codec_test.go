package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(Config{
		SecretKey: "test-codec-secret",
		Salt:      []byte("0123456789abcdef"),
	})
	assert.NoError(t, err)
	return c
}

func TestCodec_RoundTrip(t *testing.T) {
	c := newTestCodec(t)

	ids := []string{"acc_1", "a", "9zX7vK3mWqR5tY2pLc8dN4bH6fJ1gS0e", "with spaces and $ymbols"}
	for _, id := range ids {
		encoded, err := c.Encode(id)
		assert.NoError(t, err)
		assert.NotEqual(t, id, encoded)

		decoded, err := c.Decode(encoded)
		assert.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestCodec_Deterministic(t *testing.T) {
	c := newTestCodec(t)

	first, err := c.Encode("acc_1")
	assert.NoError(t, err)
	second, err := c.Encode("acc_1")
	assert.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := c.Encode("acc_2")
	assert.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestCodec_EmptyIdentifier(t *testing.T) {
	c := newTestCodec(t)

	_, err := c.Encode("")
	assert.Error(t, err)
}

func TestCodec_DecodeRejectsGarbage(t *testing.T) {
	c := newTestCodec(t)

	t.Run("not base64", func(t *testing.T) {
		_, err := c.Decode("!!! not base64 !!!")
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := c.Decode("YWJj")
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	})

	t.Run("wrong key", func(t *testing.T) {
		otherCodec, err := New(Config{SecretKey: "another-secret", Salt: []byte("fedcba9876543210")})
		assert.NoError(t, err)

		encoded, err := otherCodec.Encode("acc_1")
		assert.NoError(t, err)

		_, err = c.Decode(encoded)
		assert.ErrorIs(t, err, ErrInvalidIdentifier)
	})
}

func TestCodec_ConfigValidation(t *testing.T) {
	_, err := New(Config{Salt: []byte("0123456789abcdef")})
	assert.Error(t, err)

	_, err = New(Config{SecretKey: "secret"})
	assert.Error(t, err)
}

func TestCustomerIDFromURL(t *testing.T) {
	assert.Equal(t, "cust_123", CustomerIDFromURL("https://api.dwolla.com/customers/cust_123"))
	assert.Equal(t, "cust_123", CustomerIDFromURL("https://api.dwolla.com/customers/cust_123/"))
	assert.Equal(t, "cust_123", CustomerIDFromURL("cust_123"))
}

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ProsperityMC/christmas-draw/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestCreateAdmin(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "draw.db"))
	require.NoError(t, err)
	defer st.Close()

	var out bytes.Buffer
	require.NoError(t, createAdmin(ctx, st, strings.NewReader("Santa Claus\nsanta\nhohoho\n"), &out))
	assert.Contains(t, out.String(), "Admin user 'santa' created successfully!")

	u, err := st.GetUserByUsername(ctx, "santa")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.Equal(t, "Santa Claus", u.Name)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hohoho")))

	out.Reset()
	require.NoError(t, createAdmin(ctx, st, strings.NewReader("no\n"), &out))
	assert.Contains(t, out.String(), "Exiting...")
	n, err := st.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = createAdmin(ctx, st, strings.NewReader("y\nElf\n\n\n"), &out)
	assert.Error(t, err)

	err = createAdmin(ctx, st, strings.NewReader("yes\nOther\nsanta\npw\n"), &out)
	assert.ErrorIs(t, err, store.ErrUsernameTaken)
}

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ProsperityMC/christmas-draw/store"
	"golang.org/x/crypto/bcrypt"
)

// createAdmin prompts for the details of a new admin user on in.
func createAdmin(ctx context.Context, st *store.Store, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	prompt := func(label string) string {
		_, _ = fmt.Fprint(out, label)
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}

	admins, err := st.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if admins > 0 {
		_, _ = fmt.Fprintf(out, "%d admin user(s) already exist.\n", admins)
		answer := strings.ToLower(prompt("Do you want to create another admin? (yes/no): "))
		if answer != "yes" && answer != "y" {
			_, _ = fmt.Fprintln(out, "Exiting...")
			return nil
		}
	}

	_, _ = fmt.Fprintln(out, "\n=== Create Admin User ===")
	name := prompt("Admin name: ")
	username := prompt("Admin username: ")
	password := prompt("Admin password: ")
	if name == "" || username == "" || password == "" {
		return errors.New("all fields are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = st.CreateUser(ctx, store.NewUser{
		Name:         name,
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      true,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\nAdmin user '%s' created successfully!\n", username)
	return nil
}

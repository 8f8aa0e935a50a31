// Command hashpass prints a bcrypt hash for the dashboard login and the
// config snippet that enables it.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/mmuteeullah/CamWatch/internal/auth"
)

func main() {
	username := flag.String("user", "admin", "Username for the dashboard login")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hashpass [-user name] <password>")
		fmt.Fprintln(os.Stderr, "Example: hashpass -user admin mysecretpassword")
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	hash, err := auth.HashPassword(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating hash: %v\n", err)
		os.Exit(1)
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating secret key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Password Hash:")
	fmt.Println(hash)
	fmt.Println()
	fmt.Println("Add this to your config.yaml:")
	fmt.Printf("server:\n  authentication:\n    enabled: true\n    username: %s\n    password_hash: \"%s\"\n    session_timeout: 60\n    secret_key: \"%s\"\n",
		*username, hash, hex.EncodeToString(secret))
}

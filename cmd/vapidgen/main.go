// Command vapidgen prints a fresh VAPID key pair for web push. Run once
// and put the output in CHALLENGER_VAPID_PUBLIC_KEY and
// CHALLENGER_VAPID_PRIVATE_KEY.
package main

import (
	"fmt"
	"os"

	"github.com/challengerdaily/challengerdaily/internal/push"
)

func main() {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate keys: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("CHALLENGER_VAPID_PUBLIC_KEY=%s\n", pub)
	fmt.Printf("CHALLENGER_VAPID_PRIVATE_KEY=%s\n", priv)
}

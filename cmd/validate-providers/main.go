package main

import (
	"fmt"
	"os"

	"github.com/restaurant-platform/webhook-gateway/providers"
)

/* validate-providers - Standalone CLI tool to validate providers.yaml
 * Usage: go run cmd/validate-providers/main.go [providers.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	providersFile := "providers.yaml"
	if len(os.Args) > 1 {
		providersFile = os.Args[1]
	}

	fmt.Printf("Validating providers file: %s\n\n", providersFile)

	registry, err := providers.Load(providersFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	names := registry.Names()
	fmt.Printf("VALIDATION PASSED\n\n")
	fmt.Printf("Configured %d provider(s):\n", len(names))

	for i, name := range names {
		adapter, settings, err := registry.Get(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%d. Provider: %s\n", i+1, name)
		fmt.Printf("   Signature Header: %s\n", adapter.SignatureHeader())
		fmt.Printf("   Encoding:         %s\n", adapter.SignatureEncoding())
		fmt.Printf("   Rate Limit:       %d req / %s\n", settings.RateLimit, settings.RateWindow)

		if len(settings.AllowedIPs) == 0 {
			fmt.Printf("   Allowed IPs:      any\n")
		} else {
			fmt.Printf("   Allowed IPs:\n")
			for _, prefix := range settings.AllowedIPs {
				fmt.Printf("     - %s\n", prefix)
			}
		}
	}

	fmt.Printf("\nAll providers are valid!\n")
	os.Exit(0)
}

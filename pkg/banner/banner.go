package banner

import "fmt"

const banner = `
████████╗██╗  ██╗ ██████╗ ██╗   ██╗ ██████╗ ██╗  ██╗████████╗██████╗  ██████╗ ███████╗████████╗
╚══██╔══╝██║  ██║██╔═══██╗██║   ██║██╔════╝ ██║  ██║╚══██╔══╝██╔══██╗██╔═══██╗██╔════╝╚══██╔══╝
   ██║   ███████║██║   ██║██║   ██║██║  ███╗███████║   ██║   ██████╔╝██║   ██║███████╗   ██║
   ██║   ██╔══██║██║   ██║██║   ██║██║   ██║██╔══██║   ██║   ██╔═══╝ ██║   ██║╚════██║   ██║
   ██║   ██║  ██║╚██████╔╝╚██████╔╝╚██████╔╝██║  ██║   ██║   ██║     ╚██████╔╝███████║   ██║
   ╚═╝   ╚═╝  ╚═╝ ╚═════╝  ╚═════╝  ╚═════╝ ╚═╝  ╚═╝   ╚═╝   ╚═╝      ╚═════╝ ╚══════╝   ╚═╝
`

// Print writes the startup banner with the effective runtime settings.
func Print(addr, dbPath, redisAddr, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if redisAddr != "" {
		fmt.Printf("Channel:  %s\n", redisAddr)
	} else {
		fmt.Println("Channel:  disabled")
	}
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/posts                - Create a thought post")
	fmt.Println("GET  /v1/posts                - List posts (status, status_not, platform filters)")
	fmt.Println("POST /v1/posts/{id}/approve   - Approve enriched content and publish")
	fmt.Println("GET  /v1/posts/{id}/history   - Audit trail")
	fmt.Println("GET  /metrics                 - Prometheus metrics")
	fmt.Println()
}

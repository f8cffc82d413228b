package banner

import "fmt"

const banner = `
████████╗ █████╗ ███╗   ██╗ ██████╗██╗  ██╗ █████╗ ████████╗
╚══██╔══╝██╔══██╗████╗  ██║██╔════╝██║  ██║██╔══██╗╚══██╔══╝
   ██║   ███████║██╔██╗ ██║██║     ███████║███████║   ██║
   ██║   ██╔══██║██║╚██╗██║██║     ██╔══██║██╔══██║   ██║
   ██║   ██║  ██║██║ ╚████║╚██████╗██║  ██║██║  ██║   ██║
   ╚═╝   ╚═╝  ╚═╝╚═╝  ╚═══╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝
`

// Print writes the startup banner with the effective runtime settings.
func Print(addr, dbPath, model, sources, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	fmt.Printf("Model:    %s\n", model)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if sources != "" {
		fmt.Printf("Config sources: %s\n", sources)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/messages - Post a message (JSON: author, body)")
	fmt.Println("GET  /v1/messages?limit=<n> - List messages, chronological")
	fmt.Println("POST /v1/admin/repair - Re-issue generation for failed replies")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/messages' -d '{\"author\":\"alice\",\"body\":\"hi @gpt\"}'\n", addr)
	fmt.Printf("curl 'http://localhost%s/v1/messages?limit=10'\n", addr)
}

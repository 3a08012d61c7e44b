// Command slepauctl is the operator CLI for slepau: generating the
// symmetric token key a fresh deployment needs before it can boot, and
// driving the auth service's admin API from a terminal.
package main

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "genkey":
		doGenKey(args)
	case "sites":
		doSites(args)
	case "admins":
		doAdmins(args)
	case "users":
		doUsers(args)
	case "reset":
		doReset(args)
	case "version", "--version", "-v":
		fmt.Println("slepauctl dev")
	case "help", "--help", "-h":
		usageTo(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() { usageTo(os.Stderr) }

func usageTo(w io.Writer) {
	_, _ = fmt.Fprintf(w, `slepauctl — operator CLI for slepau

Usage: slepauctl <command> [arguments]

Environment:
  SLEPAU_URL      Base URL of the auth service (default: http://localhost:4000)
  SLEPAU_COOKIE   Value of the "auth" session cookie, sent with every request

Commands:
  genkey <path>             Write a fresh 32-byte symmetric key to path (refuses to overwrite)

  sites list                List tenants
  sites create <name>       Create a tenant
  sites delete <site-id>    Delete a tenant

  admins list                    List cross-site admins
  admins create <user> <pass>    Create a (non-super) admin; requires a super session

  users list <site-id>                 List a tenant's users
  users create <site-id> <user> <pass> Create a user under a tenant

  reset <user> <old> <new>  Reset your own password (site resolved from SLEPAU_URL's host)

  version                   Show version
  help                      Show this help
`)
}

func doGenKey(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: slepauctl genkey <path>")
		os.Exit(1)
	}
	path := args[0]
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "refusing to overwrite existing key file %s\n", path)
		os.Exit(1)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		fatal(err)
	}
	if err := os.MkdirAll(dirOf(path), 0o755); err != nil {
		fatal(err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		fatal(err)
	}
	fmt.Printf("wrote 32-byte key to %s\n", path)
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}

// --- HTTP helpers ---

func baseURL() string {
	if u := os.Getenv("SLEPAU_URL"); u != "" {
		return strings.TrimRight(u, "/")
	}
	return "http://localhost:4000"
}

func doRequest(method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, baseURL()+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie := os.Getenv("SLEPAU_COOKIE"); cookie != "" {
		req.Header.Set("Cookie", "auth="+cookie)
	}
	return http.DefaultClient.Do(req)
}

func doGet(path string) any         { return request("GET", path, nil) }
func doPost(path, body string) any  { return request("POST", path, strings.NewReader(body)) }
func doDelete(path string) any      { return request("DELETE", path, nil) }

func request(method, path string, body io.Reader) any {
	resp, err := doRequest(method, path, body)
	fatal(err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	fatal(err)
	if resp.StatusCode >= 400 {
		fmt.Fprintf(os.Stderr, "HTTP %d: %s\n", resp.StatusCode, string(data))
		os.Exit(1)
	}
	if len(data) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		fmt.Println(string(data))
		return nil
	}
	return v
}

func fatal(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func requireArgs(args []string, min int, usage string) {
	if len(args) < min {
		fmt.Fprintf(os.Stderr, "usage: slepauctl %s\n", usage)
		os.Exit(1)
	}
}

// --- Commands ---

func doSites(args []string) {
	requireArgs(args, 1, "sites <list|create|delete> [args]")
	switch args[0] {
	case "list":
		items, _ := doGet("/admin/v1/sites").([]any)
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "SITE ID\tNAME")
		for _, it := range items {
			m, _ := it.(map[string]any)
			fmt.Fprintf(tw, "%v\t%v\n", m["id"], m["name"])
		}
		_ = tw.Flush()
	case "create":
		requireArgs(args, 2, "sites create <name>")
		body, _ := json.Marshal(map[string]string{"name": args[1]})
		out := doPost("/admin/v1/sites", string(body))
		fmt.Println(prettyJSON(out))
	case "delete":
		requireArgs(args, 2, "sites delete <site-id>")
		doDelete("/admin/v1/sites/" + args[1])
		fmt.Println("site deleted.")
	default:
		fmt.Fprintf(os.Stderr, "unknown sites command: %s\n", args[0])
		os.Exit(1)
	}
}

func doAdmins(args []string) {
	requireArgs(args, 1, "admins <list|create> [args]")
	switch args[0] {
	case "list":
		items, _ := doGet("/admin/v1/admins").([]any)
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "USERNAME\tSUPER")
		for _, it := range items {
			m, _ := it.(map[string]any)
			fmt.Fprintf(tw, "%v\t%v\n", m["user"], m["super"])
		}
		_ = tw.Flush()
	case "create":
		requireArgs(args, 3, "admins create <user> <pass>")
		body, _ := json.Marshal([2]string{args[1], args[2]})
		out := doPost("/admin/v1/admins", string(body))
		fmt.Println(prettyJSON(out))
	default:
		fmt.Fprintf(os.Stderr, "unknown admins command: %s\n", args[0])
		os.Exit(1)
	}
}

func doUsers(args []string) {
	requireArgs(args, 2, "users <list|create> <site-id> [args]")
	switch args[0] {
	case "list":
		site := args[1]
		items, _ := doGet("/admin/v1/sites/" + site + "/users").([]any)
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "USERNAME")
		for _, it := range items {
			m, _ := it.(map[string]any)
			fmt.Fprintf(tw, "%v\n", m["user"])
		}
		_ = tw.Flush()
	case "create":
		requireArgs(args, 4, "users create <site-id> <user> <pass>")
		site := args[1]
		body, _ := json.Marshal([2]string{args[2], args[3]})
		out := doPost("/admin/v1/sites/"+site+"/users", string(body))
		fmt.Println(prettyJSON(out))
	default:
		fmt.Fprintf(os.Stderr, "unknown users command: %s\n", args[0])
		os.Exit(1)
	}
}

func doReset(args []string) {
	requireArgs(args, 3, "reset <user> <old> <new>")
	body, _ := json.Marshal([3]string{args[0], args[1], args[2]})
	doPost("/reset", string(body))
	fmt.Println("password reset.")
}

func prettyJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

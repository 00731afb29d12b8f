package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func main() {
	var (
		baseURL = envOr("GATEKEEP_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("GATEKEEP_ADMIN_KEY", "")
		out     = envOr("GATEKEEP_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "gatekeepctl",
		Short: "CLI admin para Gatekeep (solo /admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("falta API key (flag --admin-api-key o env GATEKEEP_ADMIN_KEY)")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del servidor (env GATEKEEP_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key del Admin API (env GATEKEEP_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	httpClient := &http.Client{Timeout: timeout}
	cl := &client{BaseURL: baseURL, APIKey: apiKey, OutFormat: out, HTTP: httpClient}

	// grupo keys
	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Operaciones sobre claves de firma",
	}

	rotateCmd := &cobra.Command{
		Use:   "rotate",
		Short: "Rotar claves de firma (current→retiring, next→current, crea next nueva)",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("POST", "/admin/rotate-keys", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("rotate fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}

	var revokeKID string
	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Expirar una clave por kid (todos sus tokens dejan de verificar)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if revokeKID == "" {
				return fmt.Errorf("--kid es requerido")
			}
			b, _ := json.Marshal(map[string]string{"kid": revokeKID})
			status, body, err := cl.do("POST", "/admin/revoke-kid", b)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("revoke fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	revokeCmd.Flags().StringVar(&revokeKID, "kid", "", "Key ID a revocar (ver /.well-known/jwks.json)")

	// ping: usa el readiness del servidor
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Verifica que el servidor responda (GET /readyz)",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/readyz", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ping fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}

	keysCmd.AddCommand(rotateCmd)
	keysCmd.AddCommand(revokeCmd)
	root.AddCommand(keysCmd)
	root.AddCommand(pingCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
)

func writeJSON(v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if _, err := os.Stdout.Write(payload); err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout)
	return err
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}

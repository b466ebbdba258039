// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export_test

import (
	"fmt"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/export"
)

// ExampleForFormat shows how a format name selects an exporter.
func ExampleForFormat() {
	for _, name := range []string{"md", "json", "yml"} {
		exp, err := export.ForFormat(name, nil)
		if err != nil {
			fmt.Println(err)
			continue
		}
		fmt.Println(name, exp.FileExtension(), exp.MimeType())
	}
	_, err := export.ForFormat("pdf", nil)
	fmt.Println(err)
	// Output:
	// md .md text/markdown
	// json .json application/json
	// yml .yaml application/yaml
	// unsupported export format "pdf" (want one of markdown, json, yaml)
}

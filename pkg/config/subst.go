/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package config

import (
	"bytes"
	"os"
	"strings"
)

// SubstPath replaces instances of '${VARNAME}' with the value of the
// environment variable. Unknown variables are left untouched.
// As a special case, a leading '~/' is replaced with the home directory.
func SubstPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	if !strings.Contains(path, "${") {
		return path
	}

	splits := strings.Split(path, "$")

	var buffer bytes.Buffer
	buffer.WriteString(splits[0]) // first split precedes the first $ so should always be written
	for _, s := range splits[1:] {
		endPos := strings.Index(s, "}")
		if !strings.HasPrefix(s, "{") || endPos == -1 {
			buffer.WriteString("$")
			buffer.WriteString(s)
			continue
		}

		subs, ok := os.LookupEnv(s[1:endPos])
		if !ok {
			buffer.WriteString("$")
			buffer.WriteString(s)
			continue
		}

		buffer.WriteString(subs)
		buffer.WriteString(s[endPos+1:])
	}
	return buffer.String()
}

// SPDX-License-Identifier: MIT

package terror

type (
	Err struct {
		error
		Data map[string]any `json:"data"`
	}
)

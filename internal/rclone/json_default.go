//go:build !sonic

package rclone

import "github.com/goccy/go-json"

var jsonUnmarshal = json.Unmarshal

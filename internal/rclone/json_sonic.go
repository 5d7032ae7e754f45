//go:build sonic

package rclone

import "github.com/bytedance/sonic"

var jsonUnmarshal = sonic.Unmarshal

// elevatorapp - terminal assistant for elevator technicians.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/dimibg-lab/Elevatorapp-ai/internal/cli"

func main() {
	cli.Execute()
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package share_test

import (
	"fmt"

	"github.com/dimibg-lab/Elevatorapp-ai/internal/model"
	"github.com/dimibg-lab/Elevatorapp-ai/internal/share"
)

func ExampleCodec() {
	conv := model.NewConversation("Door F-28")
	conv.Messages = append(conv.Messages, model.NewUserMessage("Why does door F-28 fail?"))

	codec := share.NewCodec("Imported: ")
	token, _ := codec.Encode(conv)
	link, _ := share.Link("https://elevator.example/", token)

	imported, err := codec.Decode(share.TokenFromLink(link))
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(imported.Title)
	fmt.Println(imported.Messages[0].Content)
	// Output:
	// Imported: Door F-28
	// Why does door F-28 fail?
}

package main

import (
	"context"
	"fmt"
)

// regenCode rotates a classroom's join code; the prior one stops working.
func (cli *commandLine) regenCode(id string) error {
	room, err := cli.svc.RegenerateCode(context.Background(), id)
	if err != nil {
		return err
	}
	fmt.Printf("classroom %q; new join code: %s\n", room.Name, room.Code)
	return nil
}

package cli

import (
	"fmt"
)

// confirmYes asks the user to type "yes" before a destructive action.
func confirmYes(message string) bool {
	fmt.Println(message)
	fmt.Print("\nAre you sure? (yes/no): ")
	var response string
	fmt.Scanln(&response)
	return response == "yes"
}

// confirmDiscardEdits is the standard prompt for actions that would throw
// away staged cell edits.
func confirmDiscardEdits(count int) bool {
	return confirmYes(fmt.Sprintf("You have %d unsaved edit(s). They will be discarded.", count))
}

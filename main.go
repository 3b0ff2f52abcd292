// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/relayhook/cmd/relayhook"

func main() {
	cmd.Execute()
}

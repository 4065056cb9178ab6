package usb2snes

// Opcode names a usb2snes request; the string value is sent verbatim as "Opcode".
type Opcode string

const (
	OpAppVersion Opcode = "AppVersion"
	OpName       Opcode = "Name"
	OpDeviceList Opcode = "DeviceList"
	OpAttach     Opcode = "Attach"
	OpInfo       Opcode = "Info"
	OpBoot       Opcode = "Boot"
	OpReset      Opcode = "Reset"
	OpMenu       Opcode = "Menu"

	OpList    Opcode = "List"
	OpPutFile Opcode = "PutFile"
	OpGetFile Opcode = "GetFile"
	OpRename  Opcode = "Rename"
	OpRemove  Opcode = "Remove"

	OpGetAddress Opcode = "GetAddress"
)

// Space selects the address space a command operates in. SpaceNone is omitted on the wire.
type Space string

const (
	SpaceNone Space = ""
	SpaceSNES Space = "SNES"
	SpaceCMD  Space = "CMD"
)

// Command is one request frame. Build it with NewCommand and treat it as immutable.
type Command struct {
	Opcode   Opcode
	Space    Space
	Operands []string
}

func NewCommand(op Opcode, operands ...string) Command {
	return Command{Opcode: op, Operands: operands}
}

// InSpace returns a copy of c addressed to space s.
func (c Command) InSpace(s Space) Command {
	c.Space = s
	return c
}

// Reply is a decoded text reply.
type Reply struct {
	Results []string
}

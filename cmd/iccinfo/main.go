// Command iccinfo is a diagnostic dump: given a known color-space name it
// synthesizes the ICC v2 profile and prints the header fields (class, space,
// PCS, version, acsp signature) plus the tag table. Given a path to an
// existing .icc file it dumps the same fields read back from disk.
package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/c0lormem/apltestgen/pkg/colorspace"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: iccinfo <rec709|displayP3|rec2020|path-to.icc>")
		os.Exit(1)
	}
	arg := os.Args[1]

	var profile []byte
	switch colorspace.Tag(arg) {
	case colorspace.Rec709, colorspace.DisplayP3, colorspace.Rec2020:
		p, err := colorspace.BuildProfile(mustDescribe(colorspace.Tag(arg)))
		if err != nil {
			fmt.Println("build error:", err)
			os.Exit(1)
		}
		profile = p
	default:
		b, err := os.ReadFile(arg)
		if err != nil {
			fmt.Println("read error:", err)
			os.Exit(1)
		}
		profile = b
	}

	dump(profile)
}

func mustDescribe(tag colorspace.Tag) colorspace.Descriptor {
	d, err := colorspace.Describe(tag)
	if err != nil {
		fmt.Println("describe error:", err)
		os.Exit(1)
	}
	return d
}

func dump(profile []byte) {
	if len(profile) < 132 {
		fmt.Println("profile too short to be a valid ICC v2 profile")
		os.Exit(1)
	}
	fmt.Printf("Profile size (field): %d\n", binary.BigEndian.Uint32(profile[0:4]))
	fmt.Printf("Actual length:        %d\n", len(profile))
	fmt.Printf("CMM:                  %q\n", profile[4:8])
	fmt.Printf("Version:              % x\n", profile[8:12])
	fmt.Printf("Device class:         %q\n", profile[12:16])
	fmt.Printf("Color space:          %q\n", profile[16:20])
	fmt.Printf("PCS:                  %q\n", profile[20:24])
	fmt.Printf("Signature (acsp):     %q\n", profile[36:40])
	fmt.Printf("Rendering intent:     %d\n", binary.BigEndian.Uint32(profile[64:68]))

	count := binary.BigEndian.Uint32(profile[128:132])
	fmt.Printf("Tag count:            %d\n", count)
	for i := uint32(0); i < count; i++ {
		base := 132 + i*12
		if int(base+12) > len(profile) {
			break
		}
		sig := profile[base : base+4]
		offset := binary.BigEndian.Uint32(profile[base+4 : base+8])
		size := binary.BigEndian.Uint32(profile[base+8 : base+12])
		fmt.Printf("  %q  offset=%-6d size=%-6d\n", sig, offset, size)
	}
}

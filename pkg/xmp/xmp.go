// Package xmp builds the four gain-map XMP packet variants: Apple primary,
// Apple gain map, Ultra HDR (ISO 21496-1) primary, and Ultra HDR gain map.
package xmp

import (
	"bytes"
	"fmt"
	"text/template"
)

// App1Prefix is the mandatory XMP APP1 payload prefix.
const App1Prefix = "http://ns.adobe.com/xap/1.0/\x00"

const xpacketBegin = "<?xpacket begin='\ufeff' id='W5M0MpCehiHzreSzNTczkc9d'?>\n"
const xpacketEnd = "<?xpacket end='w'?>"

var appleTemplates = struct {
	Primary, GainMap *template.Template
}{
	Primary: template.Must(template.New("apple-primary").Parse(
		xpacketBegin +
			"<x:xmpmeta xmlns:x='adobe:ns:meta/'>\n" +
			"  <rdf:RDF xmlns:rdf='http://www.w3.org/1999/02/22-rdf-syntax-ns#'>\n" +
			"    <rdf:Description rdf:about=''\n" +
			"      xmlns:HDRGainMap='http://ns.apple.com/HDRGainMap/1.0/'\n" +
			"      HDRGainMap:HDRGainMapVersion='65536'\n" +
			"      HDRGainMap:HDRGainMapHeadroom='{{printf \"%.6f\" .Headroom}}'/>\n" +
			"  </rdf:RDF>\n" +
			"</x:xmpmeta>\n" +
			xpacketEnd)),
	GainMap: template.Must(template.New("apple-gainmap").Parse(
		xpacketBegin +
			"<x:xmpmeta xmlns:x='adobe:ns:meta/'>\n" +
			"  <rdf:RDF xmlns:rdf='http://www.w3.org/1999/02/22-rdf-syntax-ns#'>\n" +
			"    <rdf:Description rdf:about=''\n" +
			"      xmlns:HDRGainMap='http://ns.apple.com/HDRGainMap/1.0/'\n" +
			"      xmlns:apdi='http://ns.apple.com/pixeldatainfo/1.0/'\n" +
			"      HDRGainMap:HDRGainMapVersion='65536'\n" +
			"      HDRGainMap:HDRGainMapHeadroom='{{printf \"%.6f\" .Headroom}}'\n" +
			"      apdi:AuxiliaryImageType='urn:com:apple:photo:2020:aux:hdrgainmap'/>\n" +
			"  </rdf:RDF>\n" +
			"</x:xmpmeta>\n" +
			xpacketEnd)),
}

var uhdrTemplates = struct {
	Primary, GainMap *template.Template
}{
	Primary: template.Must(template.New("uhdr-primary").Parse(
		xpacketBegin +
			"<x:xmpmeta xmlns:x='adobe:ns:meta/'>\n" +
			"  <rdf:RDF xmlns:rdf='http://www.w3.org/1999/02/22-rdf-syntax-ns#'>\n" +
			"    <rdf:Description rdf:about=''\n" +
			"      xmlns:hdrgm='http://ns.adobe.com/hdr-gain-map/1.0/'\n" +
			"      xmlns:Container='http://ns.google.com/photos/1.0/container/'\n" +
			"      xmlns:Item='http://ns.google.com/photos/1.0/container/item/'\n" +
			"      hdrgm:Version='1.0'>\n" +
			"      <Container:Directory>\n" +
			"        <rdf:Seq>\n" +
			"          <rdf:li rdf:parseType='Resource'>\n" +
			"            <Container:Item Item:Semantic='Primary' Item:Mime='image/jpeg'/>\n" +
			"          </rdf:li>\n" +
			"          <rdf:li rdf:parseType='Resource'>\n" +
			"            <Container:Item Item:Semantic='GainMap' Item:Mime='image/jpeg' Item:Length='{{.GainMapSize}}'/>\n" +
			"          </rdf:li>\n" +
			"        </rdf:Seq>\n" +
			"      </Container:Directory>\n" +
			"    </rdf:Description>\n" +
			"  </rdf:RDF>\n" +
			"</x:xmpmeta>\n" +
			xpacketEnd)),
	GainMap: template.Must(template.New("uhdr-gainmap").Parse(
		xpacketBegin +
			"<x:xmpmeta xmlns:x='adobe:ns:meta/'>\n" +
			"  <rdf:RDF xmlns:rdf='http://www.w3.org/1999/02/22-rdf-syntax-ns#'>\n" +
			"    <rdf:Description rdf:about=''\n" +
			"      xmlns:hdrgm='http://ns.adobe.com/hdr-gain-map/1.0/'\n" +
			"      hdrgm:Version='1.0'\n" +
			"      hdrgm:GainMapMin='0.0'\n" +
			"      hdrgm:GainMapMax='{{printf \"%.6f\" .GainMapMax}}'\n" +
			"      hdrgm:Gamma='1.0'\n" +
			"      hdrgm:OffsetSDR='0.015625'\n" +
			"      hdrgm:OffsetHDR='0.015625'\n" +
			"      hdrgm:HDRCapacityMin='0.0'\n" +
			"      hdrgm:HDRCapacityMax='{{printf \"%.6f\" .GainMapMax}}'\n" +
			"      hdrgm:BaseRenditionIsHDR='False'/>\n" +
			"  </rdf:RDF>\n" +
			"</x:xmpmeta>\n" +
			xpacketEnd)),
}

func render(t *template.Template, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("xmp: render %s: %w", t.Name(), err)
	}
	return buf.Bytes(), nil
}

// ApplePrimary builds the primary-image XMP packet for Apple's gain-map
// convention.
func ApplePrimary(headroom float64) ([]byte, error) {
	return render(appleTemplates.Primary, struct{ Headroom float64 }{headroom})
}

// AppleGainMap builds the gain-map-image XMP packet for Apple's convention.
func AppleGainMap(headroom float64) ([]byte, error) {
	return render(appleTemplates.GainMap, struct{ Headroom float64 }{headroom})
}

// UltraHDRPrimary builds the primary-image XMP packet for Ultra HDR /
// ISO 21496-1, with the gain-map JPEG's byte length embedded in
// Container:Item Item:Length.
func UltraHDRPrimary(gainMapSize int) ([]byte, error) {
	return render(uhdrTemplates.Primary, struct{ GainMapSize int }{gainMapSize})
}

// UltraHDRGainMap builds the gain-map-image XMP packet for Ultra HDR.
func UltraHDRGainMap(gainMapMax float64) ([]byte, error) {
	return render(uhdrTemplates.GainMap, struct{ GainMapMax float64 }{gainMapMax})
}

// WrapAPP1Payload prefixes xmpPacket with the mandatory XMP APP1 namespace
// header, ready for pkg/jpegmarker.InjectAPP1AfterSOI.
func WrapAPP1Payload(xmpPacket []byte) []byte {
	out := make([]byte, 0, len(App1Prefix)+len(xmpPacket))
	out = append(out, []byte(App1Prefix)...)
	out = append(out, xmpPacket...)
	return out
}

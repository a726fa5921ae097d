package protocol

import (
	"encoding/xml"
	"time"

	"github.com/forte-town/forte/internal/graph"
)

type rawRequest struct {
	XMLName       xml.Name        `xml:"Request"`
	Action        string          `xml:"Action,attr"`
	ID            string          `xml:"ID,attr"`
	FB            *rawFB          `xml:"FB"`
	Connection    *rawConnection  `xml:"Connection"`
	Watch         *rawWatch       `xml:"Watch"`
	Configuration *rawConfigRef   `xml:"Configuration"`
}

type rawFB struct {
	Name string `xml:"Name,attr"`
	Type string `xml:"Type,attr"`
}

type rawConnection struct {
	Source      string `xml:"Source,attr"`
	Destination string `xml:"Destination,attr"`
}

type rawWatch struct {
	Source      string `xml:"Source,attr"`
	Destination string `xml:"Destination,attr"`
}

type rawConfigRef struct {
	ID string `xml:"Id,attr"`
}

type rawResponse struct {
	XMLName  xml.Name     `xml:"Response"`
	ID       string       `xml:"ID,attr"`
	Status   string       `xml:"Status,attr"`
	Message  string       `xml:"Message,attr,omitempty"`
	Resource *rawResource `xml:"Resource,omitempty"`
	IDs      []rawConfigID `xml:"Configuration,omitempty"`
}

type rawConfigID struct {
	ID string `xml:"Id,attr"`
}

type rawResource struct {
	Name string      `xml:"name,attr"`
	FBs  []rawFBWatch `xml:"FB"`
}

type rawFBWatch struct {
	Name  string          `xml:"name,attr"`
	Ports []rawPortSample `xml:"Port"`
}

type rawPortSample struct {
	Name    string      `xml:"name,attr"`
	Samples []rawSample `xml:"Sample"`
}

type rawSample struct {
	Timestamp string `xml:"timestamp,attr"`
	Value     string `xml:",chardata"`
}

func okResponse(id string) []byte {
	b, _ := xml.Marshal(rawResponse{ID: id, Status: "OK"})
	return b
}

func failResponse(id, message string) []byte {
	b, _ := xml.Marshal(rawResponse{ID: id, Status: "FAIL", Message: message})
	return b
}

func listResponse(id string, ids []string) []byte {
	resp := rawResponse{ID: id, Status: "OK"}
	for _, cid := range ids {
		resp.IDs = append(resp.IDs, rawConfigID{ID: cid})
	}
	b, _ := xml.Marshal(resp)
	return b
}

// watchResponse formats read_watches's result as the <Resource>-rooted tree
// spec.md 4.7's READ action returns.
func watchResponse(id, resourceName string, groups []graph.FBWatches) []byte {
	res := &rawResource{Name: resourceName}
	for _, g := range groups {
		fbw := rawFBWatch{Name: g.FB}
		for portName, samples := range g.Ports {
			ps := rawPortSample{Name: portName}
			for _, s := range samples {
				ps.Samples = append(ps.Samples, rawSample{
					Timestamp: s.Timestamp.Format(time.RFC3339Nano),
					Value:     formatSampleValue(s.Value),
				})
			}
			fbw.Ports = append(fbw.Ports, ps)
		}
		res.FBs = append(res.FBs, fbw)
	}
	b, _ := xml.Marshal(rawResponse{ID: id, Status: "OK", Resource: res})
	return b
}

func formatSampleValue(v interface{}) string {
	return toString(v)
}

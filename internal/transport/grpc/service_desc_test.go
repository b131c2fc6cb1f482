package grpc

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
)

var rpcLine = regexp.MustCompile(`(?m)^\s*rpc\s+(\w+)\(`)

// The hand-written descriptor and the documented contract must list the same
// methods under the same service name.
func TestAppointmentsServiceDesc_MatchesProto(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "api", "salon", "v1", "appointments.proto"))
	if err != nil {
		t.Fatalf("read proto: %v", err)
	}
	proto := string(raw)

	if !strings.Contains(proto, "package salon.v1;") || !strings.Contains(proto, "service AppointmentsService {") {
		t.Fatalf("proto does not declare %s", ServiceName)
	}
	if AppointmentsServiceDesc.ServiceName != ServiceName {
		t.Fatalf("ServiceName = %q, want %q", AppointmentsServiceDesc.ServiceName, ServiceName)
	}

	var documented []string
	for _, m := range rpcLine.FindAllStringSubmatch(proto, -1) {
		documented = append(documented, m[1])
	}
	var served []string
	for _, m := range AppointmentsServiceDesc.Methods {
		served = append(served, m.MethodName)
	}
	sort.Strings(documented)
	sort.Strings(served)

	if strings.Join(documented, ",") != strings.Join(served, ",") {
		t.Fatalf("methods differ:\nproto  %v\nserved %v", documented, served)
	}
}

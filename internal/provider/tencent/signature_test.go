package tencent

import (
	"encoding/json"
	"testing"
)

func TestSign(t *testing.T) {
	payload, err := json.Marshal(describeRecordList{Domain: "zhouxi.me", Subdomain: "@", RecordType: "A"})
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != `{"Domain":"zhouxi.me","Subdomain":"@","RecordType":"A"}` {
		t.Fatalf("payload = %s", payload)
	}

	got := Sign("AKID********************************", "********************************", 1551113065, "DescribeInstances", string(payload))
	want := "TC3-HMAC-SHA256 Credential=AKID********************************/2019-02-25/dnspod/tc3_request, SignedHeaders=content-type;host;x-tc-action, Signature=dac9cc8e9da678e46365285043b2e2f236868c85385c3919ea9f98df14863fd9"
	if got != want {
		t.Errorf("Sign() =\n%s\nwant\n%s", got, want)
	}
}

func TestSignLowercasesAction(t *testing.T) {
	a := Sign("id", "key", 1551113065, "DescribeRecordList", "{}")
	b := Sign("id", "key", 1551113065, "describerecordlist", "{}")
	if a != b {
		t.Error("signature depends on action case")
	}
	if c := Sign("id", "key", 1551113066, "DescribeRecordList", "{}"); c == a {
		t.Error("signature does not depend on timestamp")
	}
}

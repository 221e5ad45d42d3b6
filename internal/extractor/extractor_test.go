package extractor

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/prokie/sv-lint/internal/sv"
)

// memSource serves sources from memory so tests never touch the disk.
type memSource map[string]string

func (m memSource) Resolve(fromFile, include string) (string, error) {
	if _, ok := m[include]; ok {
		return include, nil
	}
	return "", fmt.Errorf("not found: %s", include)
}

func (m memSource) ReadFile(path string) (string, error) {
	text, ok := m[path]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return text, nil
}

func parseSV(t *testing.T, src string) sv.Data {
	t.Helper()
	data, err := NewWithSource(memSource{"test.sv": src}).Extract("test.sv")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	return data
}

func mustFindModule(t *testing.T, data sv.Data, name string) sv.ModuleDeclaration {
	t.Helper()
	for _, m := range data.Modules {
		if m.Identifier == name {
			return m
		}
	}
	t.Fatalf("expected module %s, have %#v", name, data.Modules)
	return sv.ModuleDeclaration{}
}

func mustFindPort(t *testing.T, mod sv.ModuleDeclaration, name string) sv.Port {
	t.Helper()
	for _, p := range mod.Ports {
		if p.Identifier == name {
			return p
		}
	}
	t.Fatalf("expected port %s in module %s", name, mod.Identifier)
	return sv.Port{}
}

func mustFindParam(t *testing.T, params []sv.Parameter, name string) sv.Parameter {
	t.Helper()
	for _, p := range params {
		if p.Identifier == name {
			return p
		}
	}
	t.Fatalf("expected parameter %s", name)
	return sv.Parameter{}
}

func findInstance(mod sv.ModuleDeclaration, path string) (sv.Instance, bool) {
	for _, inst := range mod.Instances {
		if inst.HierarchicalInstance == path {
			return inst, true
		}
	}
	return sv.Instance{}, false
}

func TestExtractModuleDeclarations(t *testing.T) {
	src := `// top level interconnect
// carries the bus fabric
module top #(
  parameter WIDTH = 8,
  parameter int DEPTH = 16,
  localparam BYTES = WIDTH / 8,
  parameter logic [7:0] MASK = 8'hF0
) (
  // system clock
  input logic clk,
  input logic rst_n,
  output logic valid,
  output [7:0] data,
  inout wire sda,
  input signed [3:0] offset
);

  core u_core (
    .clk(clk),
    .rst_n(rst_n),
    .dout(data[7:0]),
    .sel(),
    rst_n
  );

  fifo #(.DEPTH(16)) u_fifo (.*);

endmodule : top
`
	data := parseSV(t, src)
	if len(data.Modules) != 1 {
		t.Fatalf("expected 1 module, got %d", len(data.Modules))
	}

	top := mustFindModule(t, data, "top")
	if top.Filepath != "test.sv" {
		t.Fatalf("expected filepath test.sv, got %q", top.Filepath)
	}
	if len(top.Comments) != 2 || top.Comments[0] != "top level interconnect" {
		t.Fatalf("unexpected module comments: %#v", top.Comments)
	}

	width := mustFindParam(t, top.Parameters, "WIDTH")
	if width.ParamKind != sv.ParamKindParameter {
		t.Fatalf("expected WIDTH to be a parameter, got %s", width.ParamKind)
	}
	if width.Expression == nil || *width.Expression != "8" {
		t.Fatalf("unexpected WIDTH expression: %v", width.Expression)
	}
	if width.DataType == nil || *width.DataType != sv.TypeLogic || !width.DataTypeOverridable {
		t.Fatalf("expected WIDTH to infer overridable logic, got %#v", width)
	}
	if width.Signedness == nil || *width.Signedness != sv.SignednessSigned || !width.SignednessOverridable {
		t.Fatalf("expected WIDTH signed overridable, got %#v", width.Signedness)
	}
	if width.NumBits == nil || *width.NumBits != 32 {
		t.Fatalf("expected WIDTH num_bits 32, got %v", width.NumBits)
	}

	depth := mustFindParam(t, top.Parameters, "DEPTH")
	if depth.DataType == nil || *depth.DataType != sv.TypeInt || depth.DataTypeOverridable {
		t.Fatalf("expected DEPTH declared int, got %#v", depth)
	}
	if depth.NumBits == nil || *depth.NumBits != 32 {
		t.Fatalf("expected DEPTH num_bits 32, got %v", depth.NumBits)
	}
	if depth.Signedness == nil || *depth.Signedness != sv.SignednessSigned {
		t.Fatalf("expected DEPTH signed by default, got %v", depth.Signedness)
	}

	bytes := mustFindParam(t, top.Parameters, "BYTES")
	if bytes.ParamKind != sv.ParamKindLocalParam {
		t.Fatalf("expected BYTES to be a localparam")
	}
	if bytes.DataType == nil || *bytes.DataType != sv.TypeLogic || bytes.DataTypeOverridable {
		t.Fatalf("expected BYTES logic, not overridable, got %#v", bytes)
	}
	if bytes.Expression == nil || *bytes.Expression != "WIDTH / 8" {
		t.Fatalf("unexpected BYTES expression: %v", bytes.Expression)
	}

	mask := mustFindParam(t, top.Parameters, "MASK")
	if len(mask.PackedDimensions) != 1 || mask.PackedDimensions[0].Left != "7" || mask.PackedDimensions[0].Right != "0" {
		t.Fatalf("unexpected MASK packed dimensions: %#v", mask.PackedDimensions)
	}
	if mask.NumBits == nil || *mask.NumBits != 8 {
		t.Fatalf("expected MASK num_bits 8, got %v", mask.NumBits)
	}

	clk := mustFindPort(t, top, "clk")
	if clk.Direction != sv.DirectionInput || clk.DataType != sv.TypeLogic {
		t.Fatalf("unexpected clk port: %#v", clk)
	}
	if clk.DataKind != sv.KindNet || clk.NetType == nil || *clk.NetType != sv.NetWire {
		t.Fatalf("expected clk to default to a wire net, got %#v", clk)
	}
	if len(clk.Comment) != 1 || clk.Comment[0] != "system clock" {
		t.Fatalf("unexpected clk comment: %#v", clk.Comment)
	}

	valid := mustFindPort(t, top, "valid")
	if valid.Direction != sv.DirectionOutput || valid.DataKind != sv.KindVariable || valid.NetType != nil {
		t.Fatalf("expected output logic to be a variable, got %#v", valid)
	}

	dataPort := mustFindPort(t, top, "data")
	if dataPort.DataKind != sv.KindNet || dataPort.NetType == nil || *dataPort.NetType != sv.NetWire {
		t.Fatalf("expected untyped output to be a wire net, got %#v", dataPort)
	}
	if len(dataPort.PackedDimensions) != 1 || dataPort.PackedDimensions[0].Left != "7" {
		t.Fatalf("unexpected data packed dimensions: %#v", dataPort.PackedDimensions)
	}

	sda := mustFindPort(t, top, "sda")
	if sda.Direction != sv.DirectionInout || sda.NetType == nil || *sda.NetType != sv.NetWire {
		t.Fatalf("unexpected sda port: %#v", sda)
	}

	offset := mustFindPort(t, top, "offset")
	if offset.Signedness == nil || *offset.Signedness != sv.SignednessSigned {
		t.Fatalf("expected offset signed, got %#v", offset.Signedness)
	}

	inst, ok := findInstance(top, "top.u_core")
	if !ok {
		t.Fatalf("expected instance top.u_core, have %#v", top.Instances)
	}
	if inst.ModuleIdentifier != "core" {
		t.Fatalf("expected core instance, got %q", inst.ModuleIdentifier)
	}
	if len(inst.Connections) != 5 {
		t.Fatalf("expected 5 connections, got %#v", inst.Connections)
	}
	if inst.Connections[0] != (sv.Connection{Port: "clk", Expr: "clk"}) {
		t.Fatalf("unexpected first connection: %#v", inst.Connections[0])
	}
	if inst.Connections[2] != (sv.Connection{Port: "dout", Expr: "data[7:0]"}) {
		t.Fatalf("unexpected dout connection: %#v", inst.Connections[2])
	}
	if inst.Connections[3] != (sv.Connection{Port: "sel", Expr: ""}) {
		t.Fatalf("expected empty connection for .sel(), got %#v", inst.Connections[3])
	}
	if inst.Connections[4] != (sv.Connection{Port: "", Expr: "rst_n"}) {
		t.Fatalf("expected positional connection, got %#v", inst.Connections[4])
	}

	fifo, ok := findInstance(top, "top.u_fifo")
	if !ok {
		t.Fatalf("expected instance top.u_fifo")
	}
	if len(fifo.Connections) != 1 || fifo.Connections[0].Port != "*" {
		t.Fatalf("expected wildcard connection, got %#v", fifo.Connections)
	}
}

func TestExtractPortInheritance(t *testing.T) {
	src := `module m (
  input logic [3:0] a, b,
  output logic y,
  z
);
endmodule
`
	data := parseSV(t, src)
	m := mustFindModule(t, data, "m")

	b := mustFindPort(t, m, "b")
	if b.Direction != sv.DirectionInput || b.DataType != sv.TypeLogic {
		t.Fatalf("expected b to inherit input logic, got %#v", b)
	}
	if len(b.PackedDimensions) != 1 || b.PackedDimensions[0].Left != "3" {
		t.Fatalf("expected b to inherit [3:0], got %#v", b.PackedDimensions)
	}

	z := mustFindPort(t, m, "z")
	if z.Direction != sv.DirectionOutput || z.DataKind != sv.KindVariable {
		t.Fatalf("expected z to inherit output variable, got %#v", z)
	}
}

func TestExtractFirstPortWithoutDirection(t *testing.T) {
	src := `module m (logic [1:0] sel, input logic en);
endmodule
`
	data := parseSV(t, src)
	m := mustFindModule(t, data, "m")

	sel := mustFindPort(t, m, "sel")
	if sel.Direction != sv.DirectionImplicit {
		t.Fatalf("expected first direction-less port to stay IMPLICIT, got %s", sel.Direction)
	}
	if sel.DataType != sv.TypeLogic {
		t.Fatalf("expected sel data type logic, got %s", sel.DataType)
	}
	en := mustFindPort(t, m, "en")
	if en.Direction != sv.DirectionInput {
		t.Fatalf("expected en input, got %s", en.Direction)
	}
}

func TestExtractNonAnsiPorts(t *testing.T) {
	src := `module legacy (clk, d, q, bus);
  input clk;
  input [7:0] d;
  output reg [7:0] q;
  inout bus;

  always @(posedge clk) begin
    q <= d;
  end
endmodule
`
	data := parseSV(t, src)
	m := mustFindModule(t, data, "legacy")
	if len(m.Ports) != 4 {
		t.Fatalf("expected 4 ports, got %d", len(m.Ports))
	}

	clk := mustFindPort(t, m, "clk")
	if clk.Direction != sv.DirectionInput || clk.DataKind != sv.KindNet {
		t.Fatalf("unexpected clk: %#v", clk)
	}

	d := mustFindPort(t, m, "d")
	if len(d.PackedDimensions) != 1 || d.PackedDimensions[0].Left != "7" || d.PackedDimensions[0].Right != "0" {
		t.Fatalf("unexpected d dimensions: %#v", d.PackedDimensions)
	}

	q := mustFindPort(t, m, "q")
	if q.Direction != sv.DirectionOutput || q.DataKind != sv.KindVariable || q.DataType != sv.TypeReg {
		t.Fatalf("expected q to be an output reg variable, got %#v", q)
	}

	bus := mustFindPort(t, m, "bus")
	if bus.Direction != sv.DirectionInout {
		t.Fatalf("expected bus inout, got %s", bus.Direction)
	}
}

func TestExtractHeaderOnlyPortStaysImplicit(t *testing.T) {
	src := `module m (mystery);
endmodule
`
	data := parseSV(t, src)
	m := mustFindModule(t, data, "m")
	port := mustFindPort(t, m, "mystery")
	if port.Direction != sv.DirectionImplicit || port.DataKind != sv.KindImplicit || port.DataType != sv.TypeImplicit {
		t.Fatalf("expected fully implicit port, got %#v", port)
	}
	if port.NetType != nil {
		t.Fatalf("expected no net type on implicit port, got %v", *port.NetType)
	}
}

func TestExtractDefaultNettypeNone(t *testing.T) {
	src := "`default_nettype none\n" + `module m (input a, input logic b);
endmodule
`
	data := parseSV(t, src)
	m := mustFindModule(t, data, "m")

	a := mustFindPort(t, m, "a")
	if a.DataKind != sv.KindImplicit || a.DataType != sv.TypeImplicit || a.NetType != nil {
		t.Fatalf("expected implicit net under default_nettype none, got %#v", a)
	}
	if a.Direction != sv.DirectionInput {
		t.Fatalf("direction should still resolve, got %s", a.Direction)
	}

	b := mustFindPort(t, m, "b")
	if b.DataKind != sv.KindImplicit || b.DataType != sv.TypeLogic {
		t.Fatalf("declared type survives, kind stays open: %#v", b)
	}
}

func TestExtractDefaultNettypeTri(t *testing.T) {
	src := "`default_nettype tri\n" + `module m (input a);
endmodule
`
	data := parseSV(t, src)
	a := mustFindPort(t, mustFindModule(t, data, "m"), "a")
	if a.DataKind != sv.KindNet || a.NetType == nil || *a.NetType != sv.NetTri {
		t.Fatalf("expected tri net, got %#v", a)
	}
}

func TestExtractParameterLiteralInference(t *testing.T) {
	src := `module m #(
  parameter NAME = "cpu",
  parameter PI = 3.14,
  parameter T_CLK = 10ns,
  parameter SIZED = 4'b0101,
  parameter UNBASED = '1,
  parameter OPAQUE = FOO
) ();
endmodule
`
	data := parseSV(t, src)
	params := mustFindModule(t, data, "m").Parameters

	name := mustFindParam(t, params, "NAME")
	if name.DataType == nil || *name.DataType != sv.TypeString {
		t.Fatalf("expected NAME string, got %#v", name.DataType)
	}
	if name.NumBits == nil || *name.NumBits != 24 {
		t.Fatalf("expected NAME num_bits 24, got %v", name.NumBits)
	}
	if name.Signedness != nil {
		t.Fatalf("string parameter has no signedness, got %v", *name.Signedness)
	}

	pi := mustFindParam(t, params, "PI")
	if pi.DataType == nil || *pi.DataType != sv.TypeReal {
		t.Fatalf("expected PI real, got %#v", pi.DataType)
	}
	if pi.NumBits == nil || *pi.NumBits != 64 {
		t.Fatalf("expected PI num_bits 64, got %v", pi.NumBits)
	}

	tclk := mustFindParam(t, params, "T_CLK")
	if tclk.DataType == nil || *tclk.DataType != sv.TypeTime {
		t.Fatalf("expected T_CLK time, got %#v", tclk.DataType)
	}

	sized := mustFindParam(t, params, "SIZED")
	if sized.NumBits == nil || *sized.NumBits != 4 {
		t.Fatalf("expected SIZED num_bits 4, got %v", sized.NumBits)
	}
	if sized.Signedness == nil || *sized.Signedness != sv.SignednessUnsigned {
		t.Fatalf("expected based literal unsigned, got %v", sized.Signedness)
	}

	unbased := mustFindParam(t, params, "UNBASED")
	if unbased.NumBits == nil || *unbased.NumBits != 1 {
		t.Fatalf("expected unbased unsized num_bits 1, got %v", unbased.NumBits)
	}

	opaque := mustFindParam(t, params, "OPAQUE")
	if opaque.DataType == nil || *opaque.DataType != sv.TypeUnsupported {
		t.Fatalf("expected OPAQUE unsupported, got %#v", opaque.DataType)
	}
	if opaque.NumBits != nil {
		t.Fatalf("no width guess for unsupported, got %v", *opaque.NumBits)
	}
}

func TestExtractTypeParameter(t *testing.T) {
	src := `module m #(parameter type T = logic [7:0]) ();
endmodule
`
	data := parseSV(t, src)
	p := mustFindParam(t, mustFindModule(t, data, "m").Parameters, "T")
	if p.DataType != nil {
		t.Fatalf("type parameter carries no data type, got %v", *p.DataType)
	}
	if !p.DataTypeOverridable {
		t.Fatalf("type parameter must be overridable")
	}
	if p.Expression == nil || *p.Expression != "logic[7:0]" {
		t.Fatalf("unexpected type default: %v", p.Expression)
	}
}

func TestExtractNonLiteralBoundsLeaveWidthUnset(t *testing.T) {
	src := `module m #(parameter WIDTH = 8) (
  input logic [WIDTH-1:0] d
);
  localparam logic [WIDTH-1:0] ZERO = '0;
endmodule
`
	data := parseSV(t, src)
	m := mustFindModule(t, data, "m")

	d := mustFindPort(t, m, "d")
	if len(d.PackedDimensions) != 1 || d.PackedDimensions[0].Left != "WIDTH - 1" {
		t.Fatalf("expected preserved bound text, got %#v", d.PackedDimensions)
	}

	zero := mustFindParam(t, m.Parameters, "ZERO")
	if zero.NumBits != nil {
		t.Fatalf("non-literal bounds must not produce a width, got %v", *zero.NumBits)
	}
}

func TestExtractGenerateHierarchy(t *testing.T) {
	src := `module top;
  genvar i;
  generate
    for (i = 0; i < 4; i = i + 1) begin : gen_lane
      lane u_lane (.idx(i));
    end
    if (1) begin : gen_dbg
      monitor u_mon ();
    end
  endgenerate

  begin_free u_direct ();
endmodule
`
	data := parseSV(t, src)
	top := mustFindModule(t, data, "top")
	if len(top.Instances) != 3 {
		t.Fatalf("expected 3 instances, got %#v", top.Instances)
	}

	lane, ok := findInstance(top, "top.gen_lane.u_lane")
	if !ok {
		t.Fatalf("expected top.gen_lane.u_lane, have %#v", top.Instances)
	}
	if len(lane.Hierarchy) != 3 || lane.Hierarchy[1] != "gen_lane" {
		t.Fatalf("unexpected hierarchy: %#v", lane.Hierarchy)
	}

	if _, ok := findInstance(top, "top.gen_dbg.u_mon"); !ok {
		t.Fatalf("expected top.gen_dbg.u_mon")
	}
	if _, ok := findInstance(top, "top.u_direct"); !ok {
		t.Fatalf("expected top.u_direct outside generate scopes")
	}
}

func TestExtractInstanceList(t *testing.T) {
	src := `module top;
  buf_cell u0 (.a(x0)), u1 (.a(x1));
endmodule
`
	data := parseSV(t, src)
	top := mustFindModule(t, data, "top")
	if len(top.Instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(top.Instances))
	}
	if top.Instances[0].HierarchicalInstance != "top.u0" || top.Instances[1].HierarchicalInstance != "top.u1" {
		t.Fatalf("unexpected instance names: %#v", top.Instances)
	}
	if top.Instances[1].ModuleIdentifier != "buf_cell" {
		t.Fatalf("both instances reference buf_cell, got %q", top.Instances[1].ModuleIdentifier)
	}
}

func TestExtractPackage(t *testing.T) {
	src := `package cfg_pkg;
  parameter int LANES = 4;
  localparam logic [1:0] MODE = 2'b01;
  typedef struct packed {
    logic a;
    logic b;
  } pair_t;

  function automatic int double(input int x);
    return x * 2;
  endfunction
endpackage : cfg_pkg

module uses_pkg;
endmodule
`
	data := parseSV(t, src)
	if len(data.Packages) != 1 {
		t.Fatalf("expected 1 package, got %d", len(data.Packages))
	}
	pkg := data.Packages[0]
	if pkg.Identifier != "cfg_pkg" || pkg.Filepath != "test.sv" {
		t.Fatalf("unexpected package: %#v", pkg)
	}

	lanes := mustFindParam(t, pkg.Parameters, "LANES")
	if lanes.DataType == nil || *lanes.DataType != sv.TypeInt {
		t.Fatalf("unexpected LANES: %#v", lanes)
	}
	mode := mustFindParam(t, pkg.Parameters, "MODE")
	if mode.NumBits == nil || *mode.NumBits != 2 {
		t.Fatalf("expected MODE num_bits 2, got %v", mode.NumBits)
	}

	if len(data.Modules) != 1 || data.Modules[0].Identifier != "uses_pkg" {
		t.Fatalf("module after package should still parse, got %#v", data.Modules)
	}
}

func TestExtractCommentAttachment(t *testing.T) {
	src := `module m (
  // primary clock
  input logic clk,

  /* active low reset
   * synchronized externally */
  input logic rst_n,
  input logic plain
);
endmodule
`
	data := parseSV(t, src)
	m := mustFindModule(t, data, "m")

	clk := mustFindPort(t, m, "clk")
	if len(clk.Comment) != 1 || clk.Comment[0] != "primary clock" {
		t.Fatalf("unexpected clk comment: %#v", clk.Comment)
	}

	rst := mustFindPort(t, m, "rst_n")
	if len(rst.Comment) != 2 || rst.Comment[0] != "active low reset" || rst.Comment[1] != "synchronized externally" {
		t.Fatalf("unexpected rst_n comment: %#v", rst.Comment)
	}

	plain := mustFindPort(t, m, "plain")
	if len(plain.Comment) != 0 {
		t.Fatalf("expected no comment on plain, got %#v", plain.Comment)
	}
}

func TestExtractSkipsBodyConstructs(t *testing.T) {
	src := `module m (input logic clk, output logic [7:0] q);
  logic [7:0] next;

  always_ff @(posedge clk) begin
    case (next)
      8'h00: q <= 8'h01;
      default: q <= next;
    endcase
  end

  function automatic logic [7:0] bump(input logic [7:0] v);
    return v + 1;
  endfunction

  assert property (@(posedge clk) q != 8'hFF);

  initial begin : init_blk
    next = '0;
  end
endmodule
`
	data := parseSV(t, src)
	m := mustFindModule(t, data, "m")
	if len(m.Ports) != 2 {
		t.Fatalf("expected 2 ports, got %d", len(m.Ports))
	}
	if len(m.Instances) != 0 {
		t.Fatalf("expected no instances, got %#v", m.Instances)
	}
}

func TestExtractSkipsDpiImportPrototypes(t *testing.T) {
	src := `import "DPI-C" function void c_hello(input int x);

module m;
  import "DPI-C" function int c_add(input int a, input int b);
  export "DPI-C" function sv_cb;
endmodule

module n;
endmodule
`
	data := parseSV(t, src)
	if len(data.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %#v", data.Modules)
	}
	mustFindModule(t, data, "m")
	mustFindModule(t, data, "n")
}

func TestExtractSkipsWaitAndDisableFork(t *testing.T) {
	src := `module m;
  initial begin
    wait fork;
    disable fork;
  end
endmodule

module n;
endmodule
`
	data := parseSV(t, src)
	if len(data.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %#v", data.Modules)
	}
	mustFindModule(t, data, "n")
}

func TestExtractSkipsTypedefForwardDeclaration(t *testing.T) {
	src := `module m;
  typedef class pkt;
endmodule

module n;
endmodule
`
	data := parseSV(t, src)
	if len(data.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %#v", data.Modules)
	}
	mustFindModule(t, data, "n")
}

func TestExtractSkipsMethodPrototypesInClass(t *testing.T) {
	src := `module m;
endmodule

virtual class base;
  pure virtual function void run();
  extern task step();
endclass

module n;
endmodule
`
	data := parseSV(t, src)
	if len(data.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %#v", data.Modules)
	}
	mustFindModule(t, data, "n")
}

func TestExtractMultipleModules(t *testing.T) {
	src := `module a;
endmodule

module b;
  a u_a ();
endmodule
`
	data := parseSV(t, src)
	if len(data.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(data.Modules))
	}
	if data.Modules[0].Identifier != "a" || data.Modules[1].Identifier != "b" {
		t.Fatalf("modules out of order: %#v", data.Modules)
	}
}

func TestExtractErrors(t *testing.T) {
	ex := NewWithSource(memSource{})

	t.Run("duplicate port", func(t *testing.T) {
		_, err := ex.ExtractSource("module m (input a, input a);\nendmodule\n", "dup.sv")
		var perr *sv.ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("expected ParseError, got %v", err)
		}
	})

	t.Run("localparam without default", func(t *testing.T) {
		_, err := ex.ExtractSource("module m;\n  localparam X;\nendmodule\n", "lp.sv")
		var perr *sv.ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("expected ParseError, got %v", err)
		}
	})

	t.Run("missing endmodule", func(t *testing.T) {
		_, err := ex.ExtractSource("module m (input a);\n", "open.sv")
		var perr *sv.ParseError
		if !errors.As(err, &perr) {
			t.Fatalf("expected ParseError, got %v", err)
		}
		if perr.Pos.File != "open.sv" {
			t.Fatalf("expected position in open.sv, got %s", perr.Pos)
		}
	})

	t.Run("unterminated conditional", func(t *testing.T) {
		_, err := ex.ExtractSource("`ifdef NEVER\nmodule m;\nendmodule\n", "cond.sv")
		var pperr *sv.PreprocessError
		if !errors.As(err, &pperr) {
			t.Fatalf("expected PreprocessError, got %v", err)
		}
	})

	t.Run("unterminated string", func(t *testing.T) {
		_, err := ex.ExtractSource("module m;\n  localparam string S = \"oops;\nendmodule\n", "str.sv")
		var lerr *sv.LexError
		if !errors.As(err, &lerr) {
			t.Fatalf("expected LexError, got %v", err)
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := ex.ExtractSource("module \xff m;\nendmodule\n", "bad.sv")
		var ioerr *sv.IoError
		if !errors.As(err, &ioerr) {
			t.Fatalf("expected IoError, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ex.Extract("nope.sv")
		var ioerr *sv.IoError
		if !errors.As(err, &ioerr) {
			t.Fatalf("expected IoError, got %v", err)
		}
	})
}

func TestExtractWithIncludesAndMacros(t *testing.T) {
	srcs := memSource{
		"defs.svh": "`define BUS_W 16\n`define REGGED\n",
		"main.sv": "`include \"defs.svh\"\n" +
			"module m (\n" +
			"  input logic [`BUS_W-1:0] d\n" +
			"`ifdef REGGED\n" +
			"  , output logic q\n" +
			"`endif\n" +
			"`ifdef NOPE\n" +
			"  , output logic never\n" +
			"`endif\n" +
			");\nendmodule\n",
	}

	data, err := NewWithSource(srcs).Extract("main.sv")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	m := mustFindModule(t, data, "m")
	if len(m.Ports) != 2 {
		t.Fatalf("expected 2 ports after preprocessing, got %#v", m.Ports)
	}
	d := mustFindPort(t, m, "d")
	if len(d.PackedDimensions) != 1 || d.PackedDimensions[0].Left != "16 - 1" {
		t.Fatalf("macro should expand in bounds, got %#v", d.PackedDimensions)
	}
	if _, ok := findPort(m, "never"); ok {
		t.Fatalf("inactive region leaked a port")
	}
}

func TestExtractRepeatedRunsAreIdentical(t *testing.T) {
	srcs := memSource{
		"widths.svh": "`define W(n) ((n)*8)\n`define LANES 4\n`define CTRL\n",
		"main.sv": "`include \"widths.svh\"\n" +
			"module m #(\n" +
			"  parameter int LANES = `LANES,\n" +
			"  parameter int DW = `W(`LANES)\n" +
			") (\n" +
			"  input logic [DW-1:0] d\n" +
			"`ifdef CTRL\n" +
			"  , input logic en\n" +
			"`endif\n" +
			");\nendmodule\n",
	}

	ex := NewWithSource(srcs)
	first, err := ex.Extract("main.sv")
	if err != nil {
		t.Fatalf("first extract failed: %v", err)
	}
	second, err := ex.Extract("main.sv")
	if err != nil {
		t.Fatalf("second extract failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated extraction diverged:\nfirst:  %#v\nsecond: %#v", first, second)
	}

	fresh, err := NewWithSource(srcs).Extract("main.sv")
	if err != nil {
		t.Fatalf("fresh extract failed: %v", err)
	}
	if !reflect.DeepEqual(first, fresh) {
		t.Fatalf("fresh extractor diverged from reused one:\nfirst: %#v\nfresh: %#v", first, fresh)
	}
}

func findPort(mod sv.ModuleDeclaration, name string) (sv.Port, bool) {
	for _, p := range mod.Ports {
		if p.Identifier == name {
			return p, true
		}
	}
	return sv.Port{}, false
}

package router

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// 导航动作，取值集合固定
type Maneuver string

const (
	ManeuverStart       Maneuver = "start"
	ManeuverFinish      Maneuver = "finish"
	ManeuverContinue    Maneuver = "continue"
	ManeuverSlightLeft  Maneuver = "slight-left"
	ManeuverSlightRight Maneuver = "slight-right"
	ManeuverTurnLeft    Maneuver = "turn-left"
	ManeuverTurnRight   Maneuver = "turn-right"
	ManeuverSharpLeft   Maneuver = "sharp-left"
	ManeuverSharpRight  Maneuver = "sharp-right"
	ManeuverUTurn       Maneuver = "uturn"
	ManeuverMerge       Maneuver = "merge"
	ManeuverExit        Maneuver = "exit"
	ManeuverRoundabout  Maneuver = "roundabout"
)

var Maneuvers = []Maneuver{
	ManeuverStart, ManeuverFinish, ManeuverContinue,
	ManeuverSlightLeft, ManeuverSlightRight,
	ManeuverTurnLeft, ManeuverTurnRight,
	ManeuverSharpLeft, ManeuverSharpRight,
	ManeuverUTurn, ManeuverMerge, ManeuverExit, ManeuverRoundabout,
}

// 只能由路段显式标注得到的动作
var taggedManeuvers = map[string]Maneuver{
	string(ManeuverUTurn):      ManeuverUTurn,
	string(ManeuverMerge):      ManeuverMerge,
	string(ManeuverExit):       ManeuverExit,
	string(ManeuverRoundabout): ManeuverRoundabout,
}

// Named中的%s替换为道路名，道路名为空时使用Plain
type Phrase struct {
	Plain string `json:"plain"`
	Named string `json:"named"`
}

type PhraseTable map[Maneuver]Phrase

// 校验并生成提示语表，键必须恰好覆盖全部动作
func NewPhraseTable(phrases map[Maneuver]Phrase) (PhraseTable, error) {
	for _, m := range Maneuvers {
		p, ok := phrases[m]
		if !ok || p.Plain == "" {
			return nil, fmt.Errorf("phrase for maneuver %q is missing", m)
		}
		if p.Named != "" && strings.Count(p.Named, "%s") != 1 {
			return nil, fmt.Errorf("named phrase for maneuver %q must contain exactly one %%s", m)
		}
	}
	if extra, _ := lo.Difference(lo.Keys(phrases), Maneuvers); len(extra) > 0 {
		return nil, fmt.Errorf("unknown maneuvers %v", extra)
	}
	return PhraseTable(phrases), nil
}

func (t PhraseTable) Instruction(m Maneuver, roadName string) string {
	p, ok := t[m]
	if !ok {
		return string(m)
	}
	if roadName != "" && p.Named != "" {
		return fmt.Sprintf(p.Named, roadName)
	}
	return p.Plain
}

var Korean = PhraseTable{
	ManeuverStart:       {Plain: "출발합니다", Named: "%s(으)로 출발하세요"},
	ManeuverFinish:      {Plain: "목적지에 도착했습니다"},
	ManeuverContinue:    {Plain: "직진하세요", Named: "%s(으)로 직진하세요"},
	ManeuverSlightLeft:  {Plain: "왼쪽 방향으로 진행하세요", Named: "%s(으)로 왼쪽 방향 진행하세요"},
	ManeuverSlightRight: {Plain: "오른쪽 방향으로 진행하세요", Named: "%s(으)로 오른쪽 방향 진행하세요"},
	ManeuverTurnLeft:    {Plain: "좌회전하세요", Named: "%s(으)로 좌회전하세요"},
	ManeuverTurnRight:   {Plain: "우회전하세요", Named: "%s(으)로 우회전하세요"},
	ManeuverSharpLeft:   {Plain: "급좌회전하세요", Named: "%s(으)로 급좌회전하세요"},
	ManeuverSharpRight:  {Plain: "급우회전하세요", Named: "%s(으)로 급우회전하세요"},
	ManeuverUTurn:       {Plain: "유턴하세요", Named: "%s(으)로 유턴하세요"},
	ManeuverMerge:       {Plain: "합류하세요", Named: "%s(으)로 합류하세요"},
	ManeuverExit:        {Plain: "출구로 나가세요", Named: "%s 방면 출구로 나가세요"},
	ManeuverRoundabout:  {Plain: "회전교차로로 진입하세요", Named: "회전교차로에서 %s(으)로 진행하세요"},
}

var English = PhraseTable{
	ManeuverStart:       {Plain: "Depart", Named: "Depart on %s"},
	ManeuverFinish:      {Plain: "You have arrived at your destination"},
	ManeuverContinue:    {Plain: "Continue straight", Named: "Continue on %s"},
	ManeuverSlightLeft:  {Plain: "Bear left", Named: "Bear left onto %s"},
	ManeuverSlightRight: {Plain: "Bear right", Named: "Bear right onto %s"},
	ManeuverTurnLeft:    {Plain: "Turn left", Named: "Turn left onto %s"},
	ManeuverTurnRight:   {Plain: "Turn right", Named: "Turn right onto %s"},
	ManeuverSharpLeft:   {Plain: "Make a sharp left", Named: "Make a sharp left onto %s"},
	ManeuverSharpRight:  {Plain: "Make a sharp right", Named: "Make a sharp right onto %s"},
	ManeuverUTurn:       {Plain: "Make a U-turn", Named: "Make a U-turn onto %s"},
	ManeuverMerge:       {Plain: "Merge", Named: "Merge onto %s"},
	ManeuverExit:        {Plain: "Take the exit", Named: "Take the exit toward %s"},
	ManeuverRoundabout:  {Plain: "Enter the roundabout", Named: "At the roundabout, continue onto %s"},
}

// 按语言选择提示语表，未知语言使用韩语
func PhrasesFor(lang string) PhraseTable {
	switch strings.ToLower(lang) {
	case "en":
		return English
	default:
		return Korean
	}
}
